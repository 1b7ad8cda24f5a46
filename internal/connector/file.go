package connector

import (
	"compress/gzip"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/ulikunitz/xz"

	"github.com/skillet-data/skillet/internal/dataset"
	"github.com/skillet-data/skillet/internal/errs"
	"github.com/skillet-data/skillet/internal/logger"
)

// FileConnector reads and writes local tabular files. Supported
// formats are csv, json (array of objects) and jsonl; a trailing
// .gz, .bz2 or .xz extension layers transparent (de)compression over
// the format.
type FileConnector struct{}

// NewFileConnector returns the file connector.
func NewFileConnector() *FileConnector { return &FileConnector{} }

func (c *FileConnector) Name() string { return "file" }

// Open binds to one file path. The location requires "name"; "format"
// overrides extension detection.
func (c *FileConnector) Open(ctx context.Context, loc Location, creds Credentials) (Handle, error) {
	name := loc.String("name")
	if name == "" {
		return nil, &errs.ConnectionError{
			Connector: c.Name(), Location: loc.Describe(), Attempts: 1,
			Err: fmt.Errorf("%w: file connector requires 'name'", errs.ErrConfigInvalid),
		}
	}
	format, compression, err := detectFormat(name, loc.String("format"))
	if err != nil {
		return nil, &errs.ConnectionError{Connector: c.Name(), Location: name, Attempts: 1, Err: err}
	}
	return &fileHandle{path: name, format: format, compression: compression}, nil
}

type fileHandle struct {
	path        string
	format      string
	compression string
	closed      bool
}

func (h *fileHandle) Read(ctx context.Context) (*dataset.Dataset, error) {
	f, err := os.Open(h.path)
	if err != nil {
		return nil, &errs.ConnectorIOError{Connector: "file", Location: h.path, Op: "read", FirstRow: -1, LastRow: -1, Err: err}
	}
	defer f.Close()

	r, closeDecomp, err := decompressReader(f, h.compression)
	if err != nil {
		return nil, &errs.ConnectorIOError{Connector: "file", Location: h.path, Op: "read", FirstRow: -1, LastRow: -1, Err: err}
	}
	if closeDecomp != nil {
		defer closeDecomp()
	}

	var ds *dataset.Dataset
	switch h.format {
	case "csv":
		ds, err = readCSV(r)
	case "json":
		ds, err = readJSON(r)
	case "jsonl":
		ds, err = readJSONL(r)
	}
	if err != nil {
		return nil, &errs.ConnectorIOError{Connector: "file", Location: h.path, Op: "read", FirstRow: -1, LastRow: -1, Err: err}
	}
	logger.LogDebug("file read", map[string]interface{}{"path": h.path, "rows": ds.NumRows()})
	return ds, nil
}

func (h *fileHandle) Write(ctx context.Context, ds *dataset.Dataset) error {
	if dir := filepath.Dir(h.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &errs.ConnectorIOError{Connector: "file", Location: h.path, Op: "write", FirstRow: -1, LastRow: -1, Err: err}
		}
	}
	f, err := os.Create(h.path)
	if err != nil {
		return &errs.ConnectorIOError{Connector: "file", Location: h.path, Op: "write", FirstRow: -1, LastRow: -1, Err: err}
	}
	if err := h.writeTo(f, ds); err != nil {
		return &errs.ConnectorIOError{Connector: "file", Location: h.path, Op: "write", FirstRow: 0, LastRow: ds.NumRows() - 1, Err: err}
	}
	logger.LogDebug("file written", map[string]interface{}{"path": h.path, "rows": ds.NumRows()})
	return nil
}

// writeTo encodes the dataset into dst and closes it. A failed close
// can mean lost buffered bytes, so it is reported, not discarded.
func (h *fileHandle) writeTo(dst io.WriteCloser, ds *dataset.Dataset) error {
	w, closeComp, err := compressWriter(dst, h.compression)
	if err != nil {
		_ = dst.Close()
		return err
	}

	switch h.format {
	case "csv":
		err = writeCSV(w, ds)
	case "json":
		err = writeJSON(w, ds)
	case "jsonl":
		err = writeJSONL(w, ds)
	}
	if err == nil && closeComp != nil {
		err = closeComp()
	} else if closeComp != nil {
		_ = closeComp()
	}
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	return err
}

func (h *fileHandle) Close() error {
	if h.closed {
		return errs.ErrHandleClosed
	}
	h.closed = true
	return nil
}

// detectFormat splits "data.csv.gz" into format csv + compression gz.
func detectFormat(path, override string) (format, compression string, err error) {
	name := path
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gz":
		compression = "gz"
		name = strings.TrimSuffix(name, filepath.Ext(name))
	case ".bz2":
		compression = "bz2"
		name = strings.TrimSuffix(name, filepath.Ext(name))
	case ".xz":
		compression = "xz"
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}
	format = override
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	}
	switch format {
	case "csv", "json", "jsonl":
		return format, compression, nil
	default:
		return "", "", fmt.Errorf("%w: unsupported file format %q", errs.ErrConfigInvalid, format)
	}
}

func decompressReader(f io.Reader, compression string) (io.Reader, func() error, error) {
	switch compression {
	case "gz":
		r, err := gzip.NewReader(f)
		if err != nil {
			return nil, nil, err
		}
		return r, r.Close, nil
	case "bz2":
		r, err := bzip2.NewReader(f, nil)
		if err != nil {
			return nil, nil, err
		}
		return r, r.Close, nil
	case "xz":
		r, err := xz.NewReader(f)
		if err != nil {
			return nil, nil, err
		}
		return r, nil, nil
	default:
		return f, nil, nil
	}
}

func compressWriter(f io.Writer, compression string) (io.Writer, func() error, error) {
	switch compression {
	case "gz":
		w := gzip.NewWriter(f)
		return w, w.Close, nil
	case "bz2":
		w, err := bzip2.NewWriter(f, nil)
		if err != nil {
			return nil, nil, err
		}
		return w, w.Close, nil
	case "xz":
		w, err := xz.NewWriter(f)
		if err != nil {
			return nil, nil, err
		}
		return w, w.Close, nil
	default:
		return f, nil, nil
	}
}

func readCSV(r io.Reader) (*dataset.Dataset, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err == io.EOF {
		return dataset.New()
	}
	if err != nil {
		return nil, err
	}
	ds, err := dataset.New(header...)
	if err != nil {
		return nil, err
	}
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make([]interface{}, len(record))
		for i, v := range record {
			row[i] = v
		}
		if err := ds.AppendRow(row); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

func writeCSV(w io.Writer, ds *dataset.Dataset) error {
	cw := csv.NewWriter(w)
	cols := ds.Columns()
	if err := cw.Write(cols); err != nil {
		return err
	}
	for r := 0; r < ds.NumRows(); r++ {
		record := make([]string, len(cols))
		for i, c := range cols {
			v, _ := ds.Value(r, c)
			if v != nil {
				record[i] = fmt.Sprintf("%v", v)
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func readJSON(r io.Reader) (*dataset.Dataset, error) {
	var rows []map[string]interface{}
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, err
	}
	return dataset.FromRows(collectColumns(rows), rows)
}

func writeJSON(w io.Writer, ds *dataset.Dataset) error {
	rows := make([]map[string]interface{}, ds.NumRows())
	for r := range rows {
		rows[r] = ds.RowMap(r)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

func readJSONL(r io.Reader) (*dataset.Dataset, error) {
	dec := json.NewDecoder(r)
	var rows []map[string]interface{}
	for {
		var row map[string]interface{}
		if err := dec.Decode(&row); err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return dataset.FromRows(collectColumns(rows), rows)
}

func writeJSONL(w io.Writer, ds *dataset.Dataset) error {
	enc := json.NewEncoder(w)
	for r := 0; r < ds.NumRows(); r++ {
		if err := enc.Encode(ds.RowMap(r)); err != nil {
			return err
		}
	}
	return nil
}

// collectColumns derives a stable column order from row maps:
// first-appearance order across rows.
func collectColumns(rows []map[string]interface{}) []string {
	var cols []string
	seen := make(map[string]bool)
	for _, row := range rows {
		// json maps have no order; sort keys per row for determinism
		keys := make([]string, 0, len(row))
		for k := range row {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	return cols
}
