package main

import (
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestWebOpenAPIMatchesDomain(t *testing.T) {
	doc, err := loadDoc("../../services/web/openapi.yaml")
	if err != nil {
		t.Fatalf("load doc: %v", err)
	}
	if err := check(doc); err != nil {
		t.Fatalf("check: %v", err)
	}
}

func TestCheckReportsDrift(t *testing.T) {
	base := `
components:
  schemas:
    ErrorResponse:
      type: object
      required: [error]
      properties:
        error: {type: string}
    Draft:
      type: object
      properties:
        recipientName: {type: string}
        message: {type: string}
        songId: {type: string}
        songName: {type: string}
        artistName: {type: string}
        albumImage: {type: string}
    Links:
      type: object
      properties:
        permalink: {type: string}
        embed: {type: string}
        whatsapp: {type: string}
    Track:
      type: object
      required: [id, name, artist, albumImage]
      properties:
        id: {type: string}
        name: {type: string}
        artist: {type: string}
        albumName: {type: string}
        albumImage: {type: string}
        previewUrl: {type: string}
`
	cases := []struct {
		name    string
		message string
		want    string
	}{
		{
			name: "missing property",
			message: `
    Message:
      type: object
      properties:
        id: {type: string}
`,
			want: "missing property",
		},
		{
			name: "wrong type",
			message: `
    Message:
      type: object
      properties:
        id: {type: string}
        recipientName: {type: string}
        message: {type: string}
        songId: {type: string}
        songName: {type: string}
        artistName: {type: string}
        albumImage: {type: string}
        createdAt: {type: string}
        likes: {type: integer}
`,
			want: "createdAt type mismatch",
		},
		{
			name: "extra property",
			message: `
    Message:
      type: object
      properties:
        id: {type: string}
        recipientName: {type: string}
        message: {type: string}
        songId: {type: string}
        songName: {type: string}
        artistName: {type: string}
        albumImage: {type: string}
        createdAt: {type: integer}
        likes: {type: integer}
        views: {type: integer}
`,
			want: "unknown property",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var doc openAPIDoc
			if err := yaml.Unmarshal([]byte(base+tc.message), &doc); err != nil {
				t.Fatalf("parse: %v", err)
			}
			err := check(doc)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestValidateErrorResponse(t *testing.T) {
	if err := validateErrorResponse(schema{Type: "object"}); err == nil {
		t.Fatalf("expected missing required error")
	}
	ok := schema{
		Type:       "object",
		Required:   []string{"error"},
		Properties: map[string]schema{"error": {Type: "string"}},
	}
	if err := validateErrorResponse(ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
