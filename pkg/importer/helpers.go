// CLAUDE:SUMMARY Shared import utilities: HTTP download with retries, ZIP detection and extraction, batched writes to the sink.
package importer

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hazyhaar/abnlookup/pkg/abn"
)

// batchSize is the number of records written per transaction.
const batchSize = 1000

// downloadFile downloads url to dest with retries and timeout.
func downloadFile(ctx context.Context, url, dest string) error {
	client := &http.Client{Timeout: 30 * time.Minute}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt)) * 100 * time.Millisecond
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
			continue
		}

		f, err := os.Create(dest)
		if err != nil {
			resp.Body.Close()
			return fmt.Errorf("create file: %w", err)
		}

		_, copyErr := io.Copy(f, resp.Body)
		resp.Body.Close()
		closeErr := f.Close()

		if copyErr != nil {
			lastErr = copyErr
			continue
		}
		if closeErr != nil {
			return closeErr
		}
		return nil
	}
	return fmt.Errorf("download %s failed after 3 attempts: %w", url, lastErr)
}

// fetch downloads url into dir. A ZIP archive is extracted and the paths of
// its files are returned; any other payload is returned as a single path.
func fetch(ctx context.Context, url, dir string) ([]string, error) {
	dest := filepath.Join(dir, "source.download")
	if err := downloadFile(ctx, url, dest); err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	isZip, err := hasZipMagic(dest)
	if err != nil {
		return nil, err
	}
	if !isZip {
		return []string{dest}, nil
	}
	files, err := unzipFile(dest, dir)
	if err != nil {
		return nil, fmt.Errorf("unzip: %w", err)
	}
	return files, nil
}

func hasZipMagic(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()
	magic := make([]byte, 4)
	n, err := io.ReadFull(f, magic)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return false, err
	}
	return n == 4 && bytes.Equal(magic, []byte("PK\x03\x04")), nil
}

// unzipFile extracts a ZIP archive to destDir and returns the list of extracted file paths.
func unzipFile(src, destDir string) ([]string, error) {
	r, err := zip.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	var paths []string
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}

		destPath := filepath.Join(destDir, filepath.Base(f.Name))
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open zip entry %s: %w", f.Name, err)
		}

		out, err := os.Create(destPath)
		if err != nil {
			rc.Close()
			return nil, fmt.Errorf("create %s: %w", destPath, err)
		}

		if _, err := io.Copy(out, rc); err != nil {
			rc.Close()
			out.Close()
			return nil, fmt.Errorf("extract %s: %w", f.Name, err)
		}
		rc.Close()
		out.Close()
		paths = append(paths, destPath)
	}
	return paths, nil
}

// filterExt keeps the paths whose extension is one of exts (case-insensitive).
// A single non-archive download is always kept.
func filterExt(paths []string, exts ...string) []string {
	if len(paths) == 1 && strings.HasSuffix(paths[0], ".download") {
		return paths
	}
	var out []string
	for _, p := range paths {
		ext := strings.ToLower(filepath.Ext(p))
		for _, e := range exts {
			if ext == e {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

// batcher buffers records and writes them to a Sink in batches.
type batcher struct {
	sink  Sink
	buf   []abn.Record
	total int
}

func newBatcher(sink Sink) *batcher {
	return &batcher{sink: sink, buf: make([]abn.Record, 0, batchSize)}
}

func (b *batcher) add(ctx context.Context, r abn.Record) error {
	b.buf = append(b.buf, r)
	if len(b.buf) >= batchSize {
		return b.flush(ctx)
	}
	return nil
}

func (b *batcher) flush(ctx context.Context) error {
	if len(b.buf) == 0 {
		return nil
	}
	if err := b.sink.Upsert(ctx, b.buf...); err != nil {
		return err
	}
	b.total += len(b.buf)
	b.buf = b.buf[:0]
	return nil
}
