package connector

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/skillet-data/skillet/internal/dataset"
	"github.com/skillet-data/skillet/internal/errs"
	"github.com/skillet-data/skillet/internal/logger"
)

const (
	objOpenAttempts  = 3
	objOpenBaseDelay = 500 * time.Millisecond
)

// ObjectStoreConnector reads and writes tabular objects in any
// S3-compatible store. Objects use the same format/compression
// detection as the file connector, keyed on the object name.
type ObjectStoreConnector struct{}

// NewObjectStoreConnector returns the object store connector.
func NewObjectStoreConnector() *ObjectStoreConnector { return &ObjectStoreConnector{} }

func (c *ObjectStoreConnector) Name() string { return "objectstore" }

func (c *ObjectStoreConnector) Open(ctx context.Context, loc Location, creds Credentials) (Handle, error) {
	endpoint, _ := creds["endpoint"].(string)
	accessKey, _ := creds["access_key"].(string)
	secretKey, _ := creds["secret_key"].(string)
	region, _ := creds["region"].(string)
	useSSL, _ := creds["use_ssl"].(bool)

	bucket := loc.String("bucket")
	if bucket == "" {
		bucket, _ = creds["bucket"].(string)
	}
	key := loc.String("key")

	if endpoint == "" || accessKey == "" || secretKey == "" {
		return nil, &errs.ConnectionError{
			Connector: c.Name(), Location: key, Attempts: 1,
			Err: fmt.Errorf("%w: objectstore endpoint/access_key/secret_key", errs.ErrMissingCredentials),
		}
	}
	if bucket == "" || key == "" {
		return nil, &errs.ConnectionError{
			Connector: c.Name(), Location: key, Attempts: 1,
			Err: fmt.Errorf("%w: objectstore connector requires 'bucket' and 'key'", errs.ErrConfigInvalid),
		}
	}
	format, compression, err := detectFormat(key, loc.String("format"))
	if err != nil {
		return nil, &errs.ConnectionError{Connector: c.Name(), Location: key, Attempts: 1, Err: err}
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, &errs.ConnectionError{Connector: c.Name(), Location: key, Attempts: 1, Err: err}
	}

	// Probe the bucket so transient endpoint/auth failures surface
	// here, within the retry budget, not mid-read.
	delay := objOpenBaseDelay
	for attempt := 1; ; attempt++ {
		var exists bool
		exists, err = client.BucketExists(ctx, bucket)
		if err == nil {
			if !exists {
				return nil, &errs.ConnectionError{
					Connector: c.Name(), Location: key, Attempts: attempt,
					Err: fmt.Errorf("bucket %q does not exist", bucket),
				}
			}
			break
		}
		if attempt >= objOpenAttempts || ctx.Err() != nil {
			return nil, &errs.ConnectionError{Connector: c.Name(), Location: key, Attempts: attempt, Err: err}
		}
		logger.LogWarn("objectstore open failed, retrying", map[string]interface{}{
			"attempt": attempt, "bucket": bucket, "delay": delay.String(),
		})
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, &errs.ConnectionError{Connector: c.Name(), Location: key, Attempts: attempt, Err: ctx.Err()}
		}
		delay *= 2
	}

	return &objectHandle{
		client: client, bucket: bucket, key: key,
		format: format, compression: compression,
	}, nil
}

type objectHandle struct {
	client      *minio.Client
	bucket      string
	key         string
	format      string
	compression string
	closed      bool
}

func (h *objectHandle) location() string { return h.bucket + "/" + h.key }

func (h *objectHandle) Read(ctx context.Context) (*dataset.Dataset, error) {
	obj, err := h.client.GetObject(ctx, h.bucket, h.key, minio.GetObjectOptions{})
	if err != nil {
		return nil, &errs.ConnectorIOError{Connector: "objectstore", Location: h.location(), Op: "read", FirstRow: -1, LastRow: -1, Err: err}
	}
	defer obj.Close()

	r, closeDecomp, err := decompressReader(obj, h.compression)
	if err != nil {
		return nil, &errs.ConnectorIOError{Connector: "objectstore", Location: h.location(), Op: "read", FirstRow: -1, LastRow: -1, Err: err}
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
		return nil, &errs.ConnectorIOError{Connector: "objectstore", Location: h.location(), Op: "read", FirstRow: -1, LastRow: -1, Err: err}
	}
	return ds, nil
}

func (h *objectHandle) Write(ctx context.Context, ds *dataset.Dataset) error {
	var buf bytes.Buffer
	w, closeComp, err := compressWriter(&buf, h.compression)
	if err == nil {
		switch h.format {
		case "csv":
			err = writeCSV(w, ds)
		case "json":
			err = writeJSON(w, ds)
		case "jsonl":
			err = writeJSONL(w, ds)
		}
	}
	if err == nil && closeComp != nil {
		err = closeComp()
	}
	if err != nil {
		return &errs.ConnectorIOError{Connector: "objectstore", Location: h.location(), Op: "write", FirstRow: -1, LastRow: -1, Err: err}
	}

	_, err = h.client.PutObject(ctx, h.bucket, h.key, &buf, int64(buf.Len()), minio.PutObjectOptions{
		ContentType: contentType(h.format),
	})
	if err != nil {
		return &errs.ConnectorIOError{Connector: "objectstore", Location: h.location(), Op: "write", FirstRow: 0, LastRow: ds.NumRows() - 1, Err: err}
	}
	logger.LogDebug("objectstore write", map[string]interface{}{"bucket": h.bucket, "key": h.key, "rows": ds.NumRows()})
	return nil
}

func (h *objectHandle) Close() error {
	if h.closed {
		return errs.ErrHandleClosed
	}
	h.closed = true
	return nil
}

func contentType(format string) string {
	switch format {
	case "csv":
		return "text/csv"
	case "json":
		return "application/json"
	default:
		return "application/x-ndjson"
	}
}
