package dataset

import (
	"errors"
	"testing"

	"github.com/skillet-data/skillet/internal/errs"
)

func addressed(t *testing.T) *Dataset {
	t.Helper()
	ds, err := New("id", "addr_street", "addr_city", "notes")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return ds
}

func TestExpandWildcard(t *testing.T) {
	ds := addressed(t)
	got, err := ds.ExpandColumns([]string{"addr_*"})
	if err != nil {
		t.Fatalf("ExpandColumns failed: %v", err)
	}
	want := []string{"addr_street", "addr_city"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v (dataset order)", got, want)
		}
	}
}

func TestExpandRegex(t *testing.T) {
	ds := addressed(t)
	got, err := ds.ExpandColumns([]string{"regex: addr_.+"})
	if err != nil {
		t.Fatalf("ExpandColumns failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("regex selection: got %v", got)
	}
}

func TestExpandOptional(t *testing.T) {
	ds := addressed(t)
	got, err := ds.ExpandColumns([]string{"id", "nickname?", "notes?"})
	if err != nil {
		t.Fatalf("ExpandColumns failed: %v", err)
	}
	if len(got) != 2 || got[0] != "id" || got[1] != "notes" {
		t.Errorf("optional selection: got %v", got)
	}
}

func TestExpandMissingColumnFails(t *testing.T) {
	ds := addressed(t)
	if _, err := ds.ExpandColumns([]string{"nickname"}); !errors.Is(err, errs.ErrColumnNotFound) {
		t.Errorf("expected ErrColumnNotFound, got %v", err)
	}
}

func TestExpandRenamesWildcardCapture(t *testing.T) {
	ds := addressed(t)
	pairs, err := ds.ExpandRenames(map[string]string{"addr_*": "address_*"}, []string{"addr_*"})
	if err != nil {
		t.Fatalf("ExpandRenames failed: %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("got %d pairs, want 2", len(pairs))
	}
	if pairs[0][0] != "addr_street" || pairs[0][1] != "address_street" {
		t.Errorf("capture substitution broken: %v", pairs[0])
	}
}

func TestExpandRenamesUnmatchedWildcardFails(t *testing.T) {
	ds := addressed(t)
	if _, err := ds.ExpandRenames(map[string]string{"zip_*": "z_*"}, []string{"zip_*"}); !errors.Is(err, errs.ErrColumnNotFound) {
		t.Errorf("expected ErrColumnNotFound, got %v", err)
	}
}
