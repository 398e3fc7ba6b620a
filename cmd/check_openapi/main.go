// Command check_openapi verifies that the web service's OpenAPI document
// describes the same JSON shapes the Go domain types encode.
package main

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"

	"forbias/pkg/domain"
	"gopkg.in/yaml.v3"
)

type openAPIDoc struct {
	Components struct {
		Schemas map[string]schema `yaml:"schemas"`
	} `yaml:"components"`
}

type schema struct {
	Type       string            `yaml:"type"`
	Ref        string            `yaml:"$ref"`
	Properties map[string]schema `yaml:"properties"`
	Required   []string          `yaml:"required"`
	Items      *schema           `yaml:"items"`
}

// checkedTypes maps schema names onto the Go values they document.
var checkedTypes = map[string]any{
	"Draft":   domain.Draft{},
	"Message": domain.Message{},
	"Links":   domain.Links{},
	"Track":   domain.Track{},
}

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <openapi.yaml>\n", os.Args[0])
		os.Exit(2)
	}
	doc, err := loadDoc(os.Args[1])
	if err != nil {
		exitErr(err)
	}
	if err := check(doc); err != nil {
		exitErr(err)
	}
	fmt.Println("OpenAPI consistency check passed.")
}

func check(doc openAPIDoc) error {
	errResp, err := getSchema(doc, "ErrorResponse")
	if err != nil {
		return err
	}
	if err := validateErrorResponse(errResp); err != nil {
		return err
	}
	names := make([]string, 0, len(checkedTypes))
	for name := range checkedTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s, err := getSchema(doc, name)
		if err != nil {
			return err
		}
		if err := ensureMatchesType(name, s, reflect.TypeOf(checkedTypes[name])); err != nil {
			return err
		}
	}
	return nil
}

func loadDoc(path string) (openAPIDoc, error) {
	var doc openAPIDoc
	raw, err := os.ReadFile(path)
	if err != nil {
		return doc, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return doc, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

func getSchema(doc openAPIDoc, name string) (schema, error) {
	if doc.Components.Schemas == nil {
		return schema{}, errors.New("components.schemas missing")
	}
	s, ok := doc.Components.Schemas[name]
	if !ok {
		return schema{}, fmt.Errorf("schema %q missing", name)
	}
	return s, nil
}

func validateErrorResponse(s schema) error {
	if s.Type != "object" {
		return errors.New("ErrorResponse must be object")
	}
	if !makeSet(s.Required)["error"] {
		return errors.New("ErrorResponse.required must include \"error\"")
	}
	errorProp, ok := s.Properties["error"]
	if !ok || errorProp.Type != "string" {
		return errors.New("ErrorResponse.error must be string")
	}
	return nil
}

type goField struct {
	Type      string
	OmitEmpty bool
}

// jsonFields lists the JSON properties t encodes, keyed by name.
func jsonFields(t reflect.Type) (map[string]goField, error) {
	out := make(map[string]goField, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		if name == "" {
			name = f.Name
		}
		typ, err := openAPIType(f.Type.Kind())
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", t.Name(), f.Name, err)
		}
		out[name] = goField{Type: typ, OmitEmpty: strings.Contains(opts, "omitempty")}
	}
	return out, nil
}

func openAPIType(kind reflect.Kind) (string, error) {
	switch kind {
	case reflect.String:
		return "string", nil
	case reflect.Int, reflect.Int32, reflect.Int64:
		return "integer", nil
	case reflect.Bool:
		return "boolean", nil
	case reflect.Slice:
		return "array", nil
	case reflect.Struct:
		return "object", nil
	default:
		return "", fmt.Errorf("unsupported kind %s", kind)
	}
}

// ensureMatchesType compares property names and types. When the schema lists
// required properties they must be exactly the fields encoded without omitempty.
func ensureMatchesType(name string, s schema, t reflect.Type) error {
	if s.Type != "object" {
		return fmt.Errorf("%s must be object", name)
	}
	fields, err := jsonFields(t)
	if err != nil {
		return err
	}
	for prop, field := range fields {
		got, ok := s.Properties[prop]
		if !ok {
			return fmt.Errorf("%s missing property %q", name, prop)
		}
		if got.Type != field.Type {
			return fmt.Errorf("%s.%s type mismatch: schema %q vs go %q", name, prop, got.Type, field.Type)
		}
	}
	for prop := range s.Properties {
		if _, ok := fields[prop]; !ok {
			return fmt.Errorf("%s documents unknown property %q", name, prop)
		}
	}
	if len(s.Required) == 0 {
		return nil
	}
	want := make([]string, 0, len(fields))
	for prop, field := range fields {
		if !field.OmitEmpty {
			want = append(want, prop)
		}
	}
	got := append([]string(nil), s.Required...)
	sort.Strings(want)
	sort.Strings(got)
	if strings.Join(want, ",") != strings.Join(got, ",") {
		return fmt.Errorf("%s required mismatch: schema %v vs go %v", name, got, want)
	}
	return nil
}

func makeSet(items []string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, item := range items {
		out[strings.TrimSpace(item)] = true
	}
	return out
}

func exitErr(err error) {
	fmt.Fprintf(os.Stderr, "OpenAPI consistency check failed: %v\n", err)
	os.Exit(1)
}
