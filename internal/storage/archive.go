package storage

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"time"
)

// ObjectStorage is the blob store behind the page archive.
type ObjectStorage interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// PageArchive keeps gzip-compressed copies of scraped pages, one per source,
// channel and UTC day, so a parser change can be replayed without re-fetching.
type PageArchive struct {
	store ObjectStorage
}

// NewPageArchive wraps store. A nil store yields a nil archive.
func NewPageArchive(store ObjectStorage) *PageArchive {
	if store == nil {
		return nil
	}
	return &PageArchive{store: store}
}

// PageKey returns the key of the page fetched from source for channelID on day.
func PageKey(source, channelID string, day time.Time) string {
	return fmt.Sprintf("pages/%s/%s/%s.html.gz", source, channelID, day.UTC().Format("2006-01-02"))
}

// Save stores page unless a copy for the same day already exists.
// It reports the key and whether an upload happened.
func (a *PageArchive) Save(ctx context.Context, source, channelID string, day time.Time, page []byte) (string, bool, error) {
	key := PageKey(source, channelID, day)
	exists, err := a.store.Exists(ctx, key)
	if err != nil {
		return key, false, err
	}
	if exists {
		return key, false, nil
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Name = channelID + ".html"
	zw.ModTime = day.UTC()
	if _, err := zw.Write(page); err != nil {
		return key, false, fmt.Errorf("compress page: %w", err)
	}
	if err := zw.Close(); err != nil {
		return key, false, fmt.Errorf("compress page: %w", err)
	}

	if err := a.store.Upload(ctx, key, &buf, int64(buf.Len()), "application/gzip"); err != nil {
		return key, false, err
	}
	return key, true, nil
}

// Load returns the decompressed page archived for day.
func (a *PageArchive) Load(ctx context.Context, source, channelID string, day time.Time) ([]byte, error) {
	key := PageKey(source, channelID, day)
	rc, err := a.store.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	zr, err := gzip.NewReader(rc)
	if err != nil {
		return nil, fmt.Errorf("open archived page %s: %w", key, err)
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
