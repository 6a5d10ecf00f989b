package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	cacheEnvVar = "PAPERDESK_CACHE_DIR"
	cacheSubdir = "paperdesk/documents"
	cacheTTL    = 24 * time.Hour
)

// DocumentCache keeps full paper PDFs on disk. A copy younger than a day is
// reused as is; an older one is revalidated with its ETag. A paper's PDF does
// not change after upload, so an interrupted download is resumed from its
// partial file without further checks.
type DocumentCache struct {
	dir    string
	client *Client
	logger *zap.Logger
}

// cacheEntry names the files kept for one paper.
type cacheEntry struct {
	id      PaperID
	pdf     string
	meta    string
	partial string
}

type entryMeta struct {
	PaperID   string    `json:"paperId"`
	Source    string    `json:"source"`
	ETag      string    `json:"etag,omitempty"`
	FetchedAt time.Time `json:"fetchedAt"`
	Size      int64     `json:"size"`
}

// NewDocumentCache stores files under dir. An empty dir falls back to
// $PAPERDESK_CACHE_DIR, then the user cache directory.
func NewDocumentCache(client *Client, dir string) (*DocumentCache, error) {
	if dir == "" {
		dir = os.Getenv(cacheEnvVar)
	}
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			base = filepath.Join(os.TempDir(), "paperdesk-cache")
		}
		dir = filepath.Join(base, cacheSubdir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DocumentCache{dir: dir, client: client, logger: client.logger.Named("cache")}, nil
}

// Fetch returns a local path holding the full PDF of paper id. When the
// server cannot be reached an outdated copy is still returned.
func (c *DocumentCache) Fetch(ctx context.Context, id PaperID) (string, error) {
	entry := c.entry(id)
	cached := entry.cachedSize()
	if cached > 0 && entry.fresh() {
		return entry.pdf, nil
	}

	meta := entry.readMeta()
	if cached == 0 {
		meta.ETag = ""
	}
	err := c.download(ctx, entry, meta)
	if err == nil {
		return entry.pdf, nil
	}
	if cached > 0 {
		c.logger.Warn("refresh failed, serving cached copy", zap.String("paper_id", id.String()), zap.Error(err))
		return entry.pdf, nil
	}
	return "", err
}

func (c *DocumentCache) entry(id PaperID) cacheEntry {
	base := filepath.Join(c.dir, cacheKey(id))
	return cacheEntry{id: id, pdf: base + ".pdf", meta: base + ".meta", partial: base + ".part"}
}

func (c *DocumentCache) download(ctx context.Context, entry cacheEntry, meta entryMeta) error {
	header := http.Header{}
	if meta.ETag != "" {
		header.Set("If-None-Match", meta.ETag)
	}
	offset := entry.partialSize()
	if offset > 0 {
		header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}
	source := c.client.FullDocumentURL(entry.id)
	c.logger.Debug("downloading document", zap.String("source", source), zap.Int64("offset", offset))

	resp, err := c.client.send(ctx, http.MethodGet, DocumentPath(entry.id), nil, "", header)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified && meta.ETag != "":
		now := time.Now()
		_ = os.Chtimes(entry.pdf, now, now)
		meta.FetchedAt = now.UTC()
		return entry.writeMeta(meta)
	case resp.StatusCode == http.StatusOK:
		offset = 0
	case resp.StatusCode == http.StatusPartialContent && offset > 0:
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return statusError(resp.StatusCode, body)
	}

	size, err := entry.store(resp.Body, offset)
	if err != nil {
		return err
	}
	return entry.writeMeta(entryMeta{
		PaperID:   entry.id.String(),
		Source:    source,
		ETag:      resp.Header.Get("Etag"),
		FetchedAt: time.Now().UTC(),
		Size:      size,
	})
}

// store writes body to the partial file, after offset bytes already there,
// and moves the result into place.
func (e cacheEntry) store(body io.Reader, offset int64) (int64, error) {
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if offset > 0 {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	file, err := os.OpenFile(e.partial, flags, 0o644)
	if err != nil {
		return 0, err
	}
	written, err := io.Copy(file, body)
	if err != nil {
		file.Close()
		return 0, networkError(err)
	}
	if err := file.Close(); err != nil {
		return 0, err
	}
	if err := os.Rename(e.partial, e.pdf); err != nil {
		return 0, err
	}
	return offset + written, nil
}

func (e cacheEntry) cachedSize() int64 {
	info, err := os.Stat(e.pdf)
	if err != nil {
		return 0
	}
	return info.Size()
}

func (e cacheEntry) fresh() bool {
	info, err := os.Stat(e.pdf)
	return err == nil && time.Since(info.ModTime()) < cacheTTL
}

func (e cacheEntry) partialSize() int64 {
	info, err := os.Stat(e.partial)
	if err != nil {
		return 0
	}
	return info.Size()
}

func (e cacheEntry) readMeta() entryMeta {
	var meta entryMeta
	data, err := os.ReadFile(e.meta)
	if err != nil {
		return meta
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return entryMeta{}
	}
	return meta
}

func (e cacheEntry) writeMeta(meta entryMeta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(e.meta, data, 0o644)
}

func cacheKey(id PaperID) string {
	value := strings.TrimSpace(string(id))
	value = strings.NewReplacer("/", "-", "\\", "-", ":", "-", "..", "-").Replace(value)
	if value == "" {
		value = "_"
	}
	return "paper-" + value
}
