package domain

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestBuildLinks(t *testing.T) {
	m := Message{ID: "k3x9a1z", SongID: "4uLU6hMCjMI75M1A2tKUQC"}
	links := BuildLinks("https://forbias.example/", m)

	if links.Permalink != "https://forbias.example/messages/k3x9a1z" {
		t.Fatalf("permalink = %q", links.Permalink)
	}
	if links.Embed != "https://open.spotify.com/embed/track/4uLU6hMCjMI75M1A2tKUQC?theme=0" {
		t.Fatalf("embed = %q", links.Embed)
	}
	if !strings.HasPrefix(links.WhatsApp, "https://wa.me/?text=Check+out+this+message+on+For+Bias%3A+") {
		t.Fatalf("whatsapp = %q", links.WhatsApp)
	}
	if !strings.Contains(links.WhatsApp, "https%3A%2F%2Fforbias.example%2Fmessages%2Fk3x9a1z") {
		t.Fatalf("whatsapp share text should carry the permalink, got %q", links.WhatsApp)
	}
}

func TestMessageJSONFieldNames(t *testing.T) {
	raw, err := json.Marshal(Message{ID: "a", RecipientName: "Sam", CreatedAt: 42, Likes: 1})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, field := range []string{`"id"`, `"recipientName"`, `"message"`, `"songId"`, `"songName"`, `"artistName"`, `"albumImage"`, `"createdAt":42`, `"likes":1`} {
		if !strings.Contains(string(raw), field) {
			t.Fatalf("encoded message %s missing %s", raw, field)
		}
	}
}
