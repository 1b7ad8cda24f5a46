package dataset

import (
	"errors"
	"testing"

	"github.com/skillet-data/skillet/internal/errs"
)

func sample(t *testing.T) *Dataset {
	t.Helper()
	ds, err := New("id", "name")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ds.AppendRow([]interface{}{1, "alice"})
	ds.AppendRow([]interface{}{2, "bob"})
	ds.AppendRow([]interface{}{3, "carol"})
	return ds
}

func TestDuplicateColumnRejected(t *testing.T) {
	if _, err := New("a", "a"); !errors.Is(err, errs.ErrColumnExists) {
		t.Errorf("expected ErrColumnExists, got %v", err)
	}
}

func TestAppendRowChecksWidth(t *testing.T) {
	ds := sample(t)
	if err := ds.AppendRow([]interface{}{4}); !errors.Is(err, errs.ErrSchemaMismatch) {
		t.Errorf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestValueAndSetValue(t *testing.T) {
	ds := sample(t)
	if err := ds.SetValue(1, "name", "BOB"); err != nil {
		t.Fatalf("SetValue failed: %v", err)
	}
	v, err := ds.Value(1, "name")
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}
	if v != "BOB" {
		t.Errorf("got %v, want BOB", v)
	}
	if _, err := ds.Value(0, "missing"); !errors.Is(err, errs.ErrColumnNotFound) {
		t.Errorf("expected ErrColumnNotFound, got %v", err)
	}
}

func TestRenameAndDropPreserveOrder(t *testing.T) {
	ds := sample(t)
	ds.AddColumn("age", []interface{}{30, 40, 50})
	if err := ds.RenameColumn("name", "full_name"); err != nil {
		t.Fatalf("RenameColumn failed: %v", err)
	}
	got := ds.Columns()
	want := []string{"id", "full_name", "age"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("columns after rename: got %v, want %v", got, want)
		}
	}

	if err := ds.DropColumn("full_name"); err != nil {
		t.Fatalf("DropColumn failed: %v", err)
	}
	v, err := ds.Value(2, "age")
	if err != nil {
		t.Fatalf("Value after drop failed: %v", err)
	}
	if v != 50 {
		t.Errorf("age[2] after drop: got %v, want 50", v)
	}
}

func TestAppendRemapsColumnOrder(t *testing.T) {
	left := sample(t)
	right, _ := New("name", "id") // reversed order, same set
	right.AppendRow([]interface{}{"dave", 4})

	if err := left.Append(right); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if left.NumRows() != 4 {
		t.Fatalf("got %d rows, want 4", left.NumRows())
	}
	v, _ := left.Value(3, "id")
	if v != 4 {
		t.Errorf("appended id: got %v, want 4", v)
	}
}

func TestAppendRejectsDifferentColumns(t *testing.T) {
	left := sample(t)
	right, _ := New("id", "email")
	if err := left.Append(right); !errors.Is(err, errs.ErrSchemaMismatch) {
		t.Errorf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestConcat(t *testing.T) {
	left := sample(t)
	right, _ := New("score")
	right.AppendRow([]interface{}{10})
	right.AppendRow([]interface{}{20})
	right.AppendRow([]interface{}{30})

	if err := left.Concat(right); err != nil {
		t.Fatalf("Concat failed: %v", err)
	}
	v, _ := left.Value(2, "score")
	if v != 30 {
		t.Errorf("score[2]: got %v, want 30", v)
	}

	short, _ := New("extra")
	if err := left.Concat(short); !errors.Is(err, errs.ErrRowCountMismatch) {
		t.Errorf("expected ErrRowCountMismatch, got %v", err)
	}
}

func TestJoinPreservesLeftOrder(t *testing.T) {
	left := sample(t)
	right, _ := New("id", "city")
	right.AppendRow([]interface{}{3, "paris"})
	right.AppendRow([]interface{}{1, "oslo"})

	out, err := left.Join(right, []string{"id"})
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if out.NumRows() != 2 {
		t.Fatalf("got %d rows, want 2", out.NumRows())
	}
	// left order: id 1 before id 3
	v, _ := out.Value(0, "city")
	if v != "oslo" {
		t.Errorf("row 0 city: got %v, want oslo", v)
	}
	v, _ = out.Value(1, "city")
	if v != "paris" {
		t.Errorf("row 1 city: got %v, want paris", v)
	}
}

func TestJoinRequiresKeys(t *testing.T) {
	left := sample(t)
	right, _ := New("id", "city")
	if _, err := left.Join(right, nil); !errors.Is(err, errs.ErrConfigInvalid) {
		t.Errorf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestFilterRows(t *testing.T) {
	ds := sample(t)
	out := ds.FilterRows(func(r int) bool { return r != 1 })
	if out.NumRows() != 2 {
		t.Fatalf("got %d rows, want 2", out.NumRows())
	}
	v, _ := out.Value(1, "name")
	if v != "carol" {
		t.Errorf("surviving row order broken: got %v, want carol", v)
	}
	if ds.NumRows() != 3 {
		t.Errorf("FilterRows mutated the source")
	}
}

func TestSelectProjection(t *testing.T) {
	ds := sample(t)
	out, err := ds.Select([]string{"name"})
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if out.NumColumns() != 1 || out.NumRows() != 3 {
		t.Errorf("projection shape: %dx%d", out.NumRows(), out.NumColumns())
	}
	if _, err := ds.Select([]string{"missing"}); !errors.Is(err, errs.ErrColumnNotFound) {
		t.Errorf("expected ErrColumnNotFound, got %v", err)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	ds := sample(t)
	cp := ds.Clone()
	cp.SetValue(0, "name", "changed")
	v, _ := ds.Value(0, "name")
	if v != "alice" {
		t.Errorf("Clone shares row storage with the source")
	}
}

func TestFromRowsFillsMissingKeys(t *testing.T) {
	ds, err := FromRows([]string{"a", "b"}, []map[string]interface{}{
		{"a": 1, "b": 2},
		{"a": 3},
	})
	if err != nil {
		t.Fatalf("FromRows failed: %v", err)
	}
	v, _ := ds.Value(1, "b")
	if v != nil {
		t.Errorf("missing key should be nil, got %v", v)
	}
}
