package registry

import (
	"errors"
	"testing"

	"github.com/skillet-data/skillet/internal/errs"
)

func entry(kind string) (Schema, Factory) {
	return Schema{Description: kind}, func(cfg map[string]interface{}, env RunEnv) (Step, error) {
		return nil, nil
	}
}

func TestDuplicateRegistrationFails(t *testing.T) {
	r := New()
	s, f := entry("a")
	if err := r.Register("a", s, f); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	if err := r.Register("a", s, f); !errors.Is(err, errs.ErrDuplicateKind) {
		t.Errorf("expected ErrDuplicateKind, got %v", err)
	}
}

func TestOverrideIsExplicit(t *testing.T) {
	r := New()
	s, f := entry("a")
	r.MustRegister("a", s, f)
	r.Override("a", Schema{Description: "replaced"}, f)
	e, err := r.Resolve("a")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if e.Schema.Description != "replaced" {
		t.Errorf("Override did not replace the entry")
	}
}

func TestResolveUnknownKind(t *testing.T) {
	r := New()
	if _, err := r.Resolve("nope"); !errors.Is(err, errs.ErrKindNotRegistered) {
		t.Errorf("expected ErrKindNotRegistered, got %v", err)
	}
}

func TestKindsSorted(t *testing.T) {
	r := New()
	for _, k := range []string{"zebra", "alpha", "mango"} {
		s, f := entry(k)
		r.MustRegister(k, s, f)
	}
	kinds := r.Kinds()
	want := []string{"alpha", "mango", "zebra"}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("got %v, want %v", kinds, want)
		}
	}
}

func TestOverlayScopesLocalKinds(t *testing.T) {
	parent := New()
	s, f := entry("builtin")
	parent.MustRegister("builtin", s, f)

	o := NewOverlay(parent)
	cs, cf := entry("custom.clean")
	if err := o.Register("custom.clean", cs, cf); err != nil {
		t.Fatalf("overlay registration failed: %v", err)
	}

	if _, err := o.Resolve("custom.clean"); err != nil {
		t.Errorf("overlay should resolve its local kind: %v", err)
	}
	if _, err := o.Resolve("builtin"); err != nil {
		t.Errorf("overlay should fall through to the parent: %v", err)
	}
	// Local kinds never reach the parent
	if _, err := parent.Resolve("custom.clean"); err == nil {
		t.Errorf("overlay kind leaked into the parent registry")
	}
}

func TestOverlayRejectsShadowingBuiltins(t *testing.T) {
	parent := New()
	s, f := entry("builtin")
	parent.MustRegister("builtin", s, f)

	o := NewOverlay(parent)
	if err := o.Register("builtin", s, f); !errors.Is(err, errs.ErrDuplicateKind) {
		t.Errorf("expected ErrDuplicateKind, got %v", err)
	}
}

func TestOverlayDuplicateLocalKind(t *testing.T) {
	o := NewOverlay(New())
	s, f := entry("custom.x")
	if err := o.Register("custom.x", s, f); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	if err := o.Register("custom.x", s, f); !errors.Is(err, errs.ErrDuplicateKind) {
		t.Errorf("expected ErrDuplicateKind, got %v", err)
	}
}
