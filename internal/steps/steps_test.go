package steps

import (
	"context"
	"testing"

	"github.com/skillet-data/skillet/internal/dataset"
	"github.com/skillet-data/skillet/internal/registry"
)

// apply resolves a kind through the default registry and runs it,
// the same path the engine takes.
func apply(t *testing.T, kind string, cfg map[string]interface{}, ds *dataset.Dataset) *dataset.Dataset {
	t.Helper()
	kinds := Defaults()
	entry, err := kinds.Resolve(kind)
	if err != nil {
		t.Fatalf("Resolve(%q) failed: %v", kind, err)
	}
	step, err := entry.Factory(cfg, registry.RunEnv{Kinds: kinds})
	if err != nil {
		t.Fatalf("factory for %q failed: %v", kind, err)
	}
	out, err := step.Apply(context.Background(), ds)
	if err != nil {
		t.Fatalf("%q failed: %v", kind, err)
	}
	return out
}

func people(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.New("id", "name", "city")
	if err != nil {
		t.Fatal(err)
	}
	ds.AppendRow([]interface{}{1, "bob", "oslo"})
	ds.AppendRow([]interface{}{2, "alice", "paris"})
	return ds
}

func cell(t *testing.T, ds *dataset.Dataset, row int, col string) interface{} {
	t.Helper()
	v, err := ds.Value(row, col)
	if err != nil {
		t.Fatalf("Value(%d, %q) failed: %v", row, col, err)
	}
	return v
}

func TestUppercase(t *testing.T) {
	out := apply(t, "uppercase", map[string]interface{}{"column": "name"}, people(t))
	if v := cell(t, out, 0, "name"); v != "BOB" {
		t.Errorf("got %v, want BOB", v)
	}
}

func TestLowercase(t *testing.T) {
	ds := people(t)
	ds.SetValue(0, "name", "BOB")
	out := apply(t, "lowercase", map[string]interface{}{"column": "name"}, ds)
	if v := cell(t, out, 0, "name"); v != "bob" {
		t.Errorf("got %v, want bob", v)
	}
}

func TestConvertCaseTitleWithOutput(t *testing.T) {
	out := apply(t, "convert.case", map[string]interface{}{
		"input": "name", "case": "title", "output": "display",
	}, people(t))
	if v := cell(t, out, 1, "display"); v != "Alice" {
		t.Errorf("got %v, want Alice", v)
	}
	if v := cell(t, out, 1, "name"); v != "alice" {
		t.Errorf("input column must be untouched when output is set, got %v", v)
	}
}

func TestRenameWildcard(t *testing.T) {
	ds, _ := dataset.New("addr_street", "addr_city", "id")
	ds.AppendRow([]interface{}{"main st", "oslo", 1})
	out := apply(t, "rename", map[string]interface{}{
		"columns": map[string]interface{}{"addr_*": "address_*"},
	}, ds)
	cols := out.Columns()
	if cols[0] != "address_street" || cols[1] != "address_city" {
		t.Errorf("wildcard rename: %v", cols)
	}
}

func TestCopyAndDrop(t *testing.T) {
	out := apply(t, "copy", map[string]interface{}{"input": "name", "output": "name_2"}, people(t))
	if v := cell(t, out, 0, "name_2"); v != "bob" {
		t.Errorf("copy: got %v", v)
	}
	out = apply(t, "drop", map[string]interface{}{"columns": "city"}, out)
	if out.HasColumn("city") {
		t.Errorf("drop left the column behind")
	}
}

func TestSelectKeepsOrder(t *testing.T) {
	out := apply(t, "select", map[string]interface{}{"columns": []interface{}{"city", "id"}}, people(t))
	cols := out.Columns()
	if len(cols) != 2 || cols[0] != "city" || cols[1] != "id" {
		t.Errorf("select order: %v", cols)
	}
}

func TestFilterWhereEquals(t *testing.T) {
	out := apply(t, "filter.where", map[string]interface{}{"input": "city", "equals": "oslo"}, people(t))
	if out.NumRows() != 1 {
		t.Fatalf("got %d rows, want 1", out.NumRows())
	}
	if v := cell(t, out, 0, "name"); v != "bob" {
		t.Errorf("wrong row kept: %v", v)
	}
}

func TestFormatPrefixAndTrim(t *testing.T) {
	ds := people(t)
	ds.SetValue(0, "name", "  bob ")
	out := apply(t, "format.trim", map[string]interface{}{"input": "name"}, ds)
	if v := cell(t, out, 0, "name"); v != "bob" {
		t.Errorf("trim: got %q", v)
	}
	out = apply(t, "format.prefix", map[string]interface{}{"input": "name", "value": "mr "}, out)
	if v := cell(t, out, 0, "name"); v != "mr bob" {
		t.Errorf("prefix: got %q", v)
	}
}

func TestSplitTextIntoNumberedColumns(t *testing.T) {
	ds, _ := dataset.New("full")
	ds.AppendRow([]interface{}{"a-b-c"})
	ds.AppendRow([]interface{}{"x-y"})
	out := apply(t, "split.text", map[string]interface{}{
		"input": "full", "char": "-", "output": "part_*",
	}, ds)
	if v := cell(t, out, 0, "part_3"); v != "c" {
		t.Errorf("part_3: got %v", v)
	}
	if v := cell(t, out, 1, "part_3"); v != "" {
		t.Errorf("short split should pad with empty string, got %v", v)
	}
}

func TestSplitTextInPlaceList(t *testing.T) {
	ds, _ := dataset.New("tags")
	ds.AppendRow([]interface{}{"red,green"})
	out := apply(t, "split.text", map[string]interface{}{"input": "tags"}, ds)
	v := cell(t, out, 0, "tags")
	list, ok := v.([]interface{})
	if !ok || len(list) != 2 || list[1] != "green" {
		t.Errorf("in-place split: got %v", v)
	}
}

func TestMergeConcat(t *testing.T) {
	out := apply(t, "merge.concat", map[string]interface{}{
		"input": []interface{}{"name", "city"}, "output": "label", "char": " / ",
	}, people(t))
	if v := cell(t, out, 0, "label"); v != "bob / oslo" {
		t.Errorf("concat: got %q", v)
	}
}

func TestIfGroupRunsOnTrue(t *testing.T) {
	out := apply(t, "if", map[string]interface{}{
		"condition": "true",
		"steps": []interface{}{
			map[string]interface{}{"uppercase": map[string]interface{}{"column": "name"}},
		},
	}, people(t))
	if v := cell(t, out, 0, "name"); v != "BOB" {
		t.Errorf("group steps did not run: %v", v)
	}
}

func TestIfGroupSkipsOnFalse(t *testing.T) {
	out := apply(t, "if", map[string]interface{}{
		"condition": "false",
		"steps": []interface{}{
			map[string]interface{}{"uppercase": map[string]interface{}{"column": "name"}},
		},
	}, people(t))
	if v := cell(t, out, 0, "name"); v != "bob" {
		t.Errorf("group steps ran despite false condition: %v", v)
	}
}

func TestIfRowsTransformsOnlyMatchingRows(t *testing.T) {
	out := apply(t, "if.rows", map[string]interface{}{
		"condition": `{{if eq .city "oslo"}}true{{end}}`,
		"steps": []interface{}{
			map[string]interface{}{"uppercase": map[string]interface{}{"column": "name"}},
		},
	}, people(t))
	if v := cell(t, out, 0, "name"); v != "BOB" {
		t.Errorf("matching row untouched: %v", v)
	}
	if v := cell(t, out, 1, "name"); v != "alice" {
		t.Errorf("non-matching row transformed: %v", v)
	}
}
