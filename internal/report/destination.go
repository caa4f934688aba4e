package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/JakeFAU/webcrawler/internal/crawler"
	"github.com/JakeFAU/webcrawler/internal/storage/gcs"
	"github.com/JakeFAU/webcrawler/internal/storage/local"
)

// StdoutURI is returned by Save when the result went to standard output.
const StdoutURI = "stdout"

// BlobOpener returns a BlobStore for a gs:// bucket and a function that releases it.
type BlobOpener func(ctx context.Context, bucket string) (crawler.BlobStore, func() error, error)

// Destination resolves an output path: empty or "-" is stdout, gs://bucket/object
// goes to Cloud Storage, anything else is a local file.
type Destination struct {
	stdout  io.Writer
	openGCS BlobOpener
}

// NewDestination builds a Destination. A nil opener uses OpenGCS.
func NewDestination(stdout io.Writer, opener BlobOpener) *Destination {
	if opener == nil {
		opener = OpenGCS
	}
	return &Destination{stdout: stdout, openGCS: opener}
}

// Save renders result in format f and writes it to target. It returns the URI written.
func (d *Destination) Save(ctx context.Context, target string, f Format, result crawler.Result) (string, error) {
	var buf bytes.Buffer
	if err := NewWriter(f, &buf).Write(result); err != nil {
		return "", err
	}

	target = strings.TrimSpace(target)
	switch {
	case target == "" || target == "-":
		if _, err := d.stdout.Write(buf.Bytes()); err != nil {
			return "", fmt.Errorf("write result to stdout: %w", err)
		}
		return StdoutURI, nil
	case strings.HasPrefix(target, "gs://"):
		return d.saveGCS(ctx, target, f, &buf)
	default:
		store, err := local.New(local.Config{BaseDir: filepath.Dir(target)})
		if err != nil {
			return "", fmt.Errorf("open result directory: %w", err)
		}
		uri, err := store.PutObject(ctx, filepath.Base(target), f.ContentType(), &buf)
		if err != nil {
			return "", fmt.Errorf("write result file: %w", err)
		}
		return uri, nil
	}
}

func (d *Destination) saveGCS(ctx context.Context, target string, f Format, r io.Reader) (uri string, err error) {
	bucket, object, err := gcs.ParseURI(target)
	if err != nil {
		return "", &crawler.ConfigurationError{Field: "output.result_path", Reason: "bad gs:// path", Err: err}
	}
	store, release, err := d.openGCS(ctx, bucket)
	if err != nil {
		return "", fmt.Errorf("open gcs bucket %s: %w", bucket, err)
	}
	defer func() {
		if release == nil {
			return
		}
		if rerr := release(); rerr != nil && err == nil {
			err = fmt.Errorf("close gcs client: %w", rerr)
		}
	}()
	uri, err = store.PutObject(ctx, object, f.ContentType(), r)
	if err != nil {
		return "", fmt.Errorf("upload result: %w", err)
	}
	return uri, nil
}

// OpenGCS connects to Cloud Storage with application default credentials.
func OpenGCS(ctx context.Context, bucket string) (crawler.BlobStore, func() error, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("create gcs client: %w", err)
	}
	store, err := gcs.New(client, gcs.Config{Bucket: bucket})
	if err != nil {
		return nil, nil, errors.Join(err, client.Close())
	}
	return store, client.Close, nil
}
