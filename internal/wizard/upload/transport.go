package upload

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	dErrors "deeptrack/pkg/domain-errors"
)

// DefaultMaxBytes bounds a single image.
const DefaultMaxBytes int64 = 8 << 20

var allowedContentTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// Target identifies where an upload belongs.
type Target struct {
	SessionID string
	Slot      Slot
}

// File is an image handed to a transport.
type File struct {
	Name        string
	Size        int64
	ContentType string
	Body        io.Reader
}

func (f File) Info() FileInfo {
	return FileInfo{Name: f.Name, Size: f.Size, Type: f.ContentType}
}

// Uploaded is the storage service's acknowledgement.
type Uploaded struct {
	URL  string `json:"url"`
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

func (u Uploaded) Info() FileInfo {
	return FileInfo{Name: u.Name, Size: u.Size, Type: u.Type}
}

// Transport moves an image to the external storage service. progress
// receives percentages in [0, 100]. Cancelling ctx aborts the upload.
type Transport interface {
	Upload(ctx context.Context, target Target, file File, progress func(int)) (Uploaded, error)
}

// ValidateFile rejects files the verification backend cannot process.
func ValidateFile(f File, maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if strings.TrimSpace(f.Name) == "" {
		return dErrors.New(dErrors.CodeValidation, "file name is required")
	}
	if _, ok := allowedContentTypes[normalizeContentType(f.ContentType)]; !ok {
		return dErrors.New(dErrors.CodeValidation, "file must be a JPEG, PNG or WebP image")
	}
	if f.Size <= 0 {
		return dErrors.New(dErrors.CodeValidation, "file is empty")
	}
	if f.Size > maxBytes {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("file exceeds the %d MB limit", maxBytes>>20))
	}
	return nil
}

func normalizeContentType(ct string) string {
	ct, _, _ = strings.Cut(ct, ";")
	return strings.ToLower(strings.TrimSpace(ct))
}

func extensionFor(ct string) string {
	return allowedContentTypes[normalizeContentType(ct)]
}

// progressReader reports the share of total bytes read so far. Reports are
// only emitted when the whole percentage changes.
type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	last   int
	report func(int)
	once   sync.Once
}

func newProgressReader(r io.Reader, total int64, report func(int)) *progressReader {
	if report == nil {
		report = func(int) {}
	}
	return &progressReader{r: r, total: total, last: -1, report: report}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
		p.emit()
	}
	return n, err
}

func (p *progressReader) emit() {
	if p.total <= 0 {
		p.once.Do(func() { p.report(0) })
		return
	}
	pct := int(min(p.read*100/p.total, 100))
	if pct != p.last {
		p.last = pct
		p.report(pct)
	}
}
