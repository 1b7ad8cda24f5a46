package custom

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/skillet-data/skillet/internal/dataset"
	"github.com/skillet-data/skillet/internal/errs"
)

func TestExportedName(t *testing.T) {
	cases := map[string]string{
		"clean_name":  "CleanName",
		"cleanup":     "Cleanup",
		"a_b_c":       "ABC",
		"trim__extra": "TrimExtra",
	}
	for in, want := range cases {
		if got := exportedName(in); got != want {
			t.Errorf("exportedName(%q): got %q, want %q", in, got, want)
		}
	}
}

func TestLoadFileMissing(t *testing.T) {
	l := NewLoader()
	err := l.LoadFile(filepath.Join(t.TempDir(), "absent.so"))
	if !errors.Is(err, errs.ErrFunctionFileNotFound) {
		t.Errorf("expected ErrFunctionFileNotFound, got %v", err)
	}
}

func TestResolveWithoutPlugins(t *testing.T) {
	l := NewLoader()
	_, err := l.Resolve("cleanup", "")
	if !errors.Is(err, errs.ErrFunctionNotFound) {
		t.Fatalf("expected ErrFunctionNotFound, got %v", err)
	}
	var cerr *errs.CustomFunctionError
	if !errors.As(err, &cerr) || cerr.Symbol != "Cleanup" {
		t.Errorf("error should carry the looked-up symbol: %v", err)
	}
}

func TestRowFunctionAddedColumnsSurvive(t *testing.T) {
	step := &rowFuncStep{fn: func(row map[string]interface{}) (map[string]interface{}, error) {
		row["added"] = "x"
		return row, nil
	}}
	ds, _ := dataset.New("name")
	ds.AppendRow([]interface{}{"bob"})

	out, err := step.Apply(context.Background(), ds)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	cols := out.Columns()
	if len(cols) != 2 || cols[0] != "name" || cols[1] != "added" {
		t.Fatalf("added key should become a trailing column: %v", cols)
	}
	if v, _ := out.Value(0, "added"); v != "x" {
		t.Errorf("added value: got %v, want x", v)
	}
}

func TestEntryPropagatesResolveFailure(t *testing.T) {
	l := NewLoader()
	_, _, err := l.Entry(Prefix + "cleanup")
	if !errors.Is(err, errs.ErrFunctionNotFound) {
		t.Errorf("expected ErrFunctionNotFound, got %v", err)
	}
}
