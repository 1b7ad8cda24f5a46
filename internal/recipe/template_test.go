package recipe

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/skillet-data/skillet/internal/errs"
)

func TestResolveVariablesFromMap(t *testing.T) {
	out, err := ResolveVariables("name: {{ file }}", map[string]string{"file": "input.csv"})
	if err != nil {
		t.Fatalf("ResolveVariables failed: %v", err)
	}
	if out != "name: input.csv" {
		t.Errorf("got %q", out)
	}
}

func TestResolveVariablesFromEnvironment(t *testing.T) {
	t.Setenv("SKILLET_TEST_BUCKET", "archive")
	out, err := ResolveVariables("bucket: {{SKILLET_TEST_BUCKET}}", nil)
	if err != nil {
		t.Fatalf("ResolveVariables failed: %v", err)
	}
	if out != "bucket: archive" {
		t.Errorf("got %q", out)
	}
}

func TestVariableMapWinsOverEnvironment(t *testing.T) {
	t.Setenv("SKILLET_TEST_BUCKET", "from-env")
	out, err := ResolveVariables("{{SKILLET_TEST_BUCKET}}", map[string]string{"SKILLET_TEST_BUCKET": "from-map"})
	if err != nil {
		t.Fatalf("ResolveVariables failed: %v", err)
	}
	if out != "from-map" {
		t.Errorf("got %q", out)
	}
}

func TestUnresolvedVariableFails(t *testing.T) {
	_, err := ResolveVariables("{{ no_such_variable_xyz }}", nil)
	if !errors.Is(err, errs.ErrTemplateUnresolved) {
		t.Fatalf("expected ErrTemplateUnresolved, got %v", err)
	}
	var terr *errs.TemplateError
	if !errors.As(err, &terr) || terr.Reference != "no_such_variable_xyz" {
		t.Errorf("error should name the variable: %v", err)
	}
}

func TestLoadMissingRecipe(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	if !errors.Is(err, errs.ErrRecipeNotFound) {
		t.Errorf("expected ErrRecipeNotFound, got %v", err)
	}
}

func TestLoadResolvesIncludes(t *testing.T) {
	dir := t.TempDir()
	shared := filepath.Join(dir, "cleanup.yaml")
	if err := os.WriteFile(shared, []byte("format.trim:\n  input: {{ column }}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	main := filepath.Join(dir, "recipe.yaml")
	doc := `
read:
  - test:
      rows: 2
      values:
        name: " x "
wrangles:
  - !include cleanup.yaml
`
	if err := os.WriteFile(main, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := Load(main, map[string]string{"column": "name"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(r.Wrangles) != 1 || r.Wrangles[0].Kind != "format.trim" {
		t.Fatalf("included step missing: %+v", r.Wrangles)
	}
	if r.Wrangles[0].Config["input"] != "name" {
		t.Errorf("variables inside includes should resolve: %v", r.Wrangles[0].Config)
	}
}

func TestLoadMissingIncludeFails(t *testing.T) {
	dir := t.TempDir()
	main := filepath.Join(dir, "recipe.yaml")
	doc := `
wrangles:
  - !include nowhere.yaml
`
	if err := os.WriteFile(main, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(main, nil)
	if !errors.Is(err, errs.ErrIncludeNotFound) {
		t.Errorf("expected ErrIncludeNotFound, got %v", err)
	}
}
