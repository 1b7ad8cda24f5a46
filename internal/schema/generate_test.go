package schema

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/skillet-data/skillet/internal/steps"
)

func TestGenerateIsDeterministic(t *testing.T) {
	kinds := steps.Defaults()
	first, err := Generate(kinds)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	second, err := Generate(kinds)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("same registry produced different schema bytes")
	}
}

func TestGenerateIsValidJSONAndCoversKinds(t *testing.T) {
	out, err := Generate(steps.Defaults())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatalf("generated schema is not valid JSON: %v", err)
	}
	if doc["$schema"] != "http://json-schema.org/draft-07/schema#" {
		t.Errorf("schema dialect: %v", doc["$schema"])
	}

	text := string(out)
	for _, kind := range []string{"uppercase", "rename", "if", "classify", "file"} {
		if !strings.Contains(text, `"`+kind+`"`) {
			t.Errorf("generated schema missing kind %q", kind)
		}
	}
	if !strings.Contains(text, "skip_row") {
		t.Errorf("generated schema missing the on_error enum")
	}
}
