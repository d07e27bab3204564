package upload

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"deeptrack/pkg/requestcontext"
)

// HTTPTransport streams images as multipart form posts to the upload service.
type HTTPTransport struct {
	endpoint string
	client   *http.Client
	field    string
}

type HTTPOption func(*HTTPTransport)

func WithHTTPClient(c *http.Client) HTTPOption {
	return func(t *HTTPTransport) {
		if c != nil {
			t.client = c
		}
	}
}

// WithFormField overrides the multipart field carrying the file ("file").
func WithFormField(name string) HTTPOption {
	return func(t *HTTPTransport) {
		if name != "" {
			t.field = name
		}
	}
}

func NewHTTPTransport(endpoint string, opts ...HTTPOption) *HTTPTransport {
	t := &HTTPTransport{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 2 * time.Minute},
		field:    "file",
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *HTTPTransport) Upload(ctx context.Context, target Target, file File, progress func(int)) (Uploaded, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(t.writeForm(mw, target, file, progress))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, pr)
	if err != nil {
		_ = pr.CloseWithError(err)
		return Uploaded{}, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if id := requestcontext.RequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		_ = pr.CloseWithError(err)
		if ctx.Err() != nil {
			return Uploaded{}, ctx.Err()
		}
		return Uploaded{}, fmt.Errorf("upload %s: %w", target.Slot, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Uploaded{}, fmt.Errorf("upload %s: storage service returned %d", target.Slot, resp.StatusCode)
	}

	var out Uploaded
	if err := json.Unmarshal(body, &out); err != nil {
		return Uploaded{}, fmt.Errorf("decode upload response: %w", err)
	}
	if out.Name == "" {
		out.Name = file.Name
	}
	if out.Size == 0 {
		out.Size = file.Size
	}
	if out.Type == "" {
		out.Type = file.ContentType
	}
	return out, nil
}

func (t *HTTPTransport) writeForm(mw *multipart.Writer, target Target, file File, progress func(int)) error {
	if err := mw.WriteField("sessionId", target.SessionID); err != nil {
		return err
	}
	if err := mw.WriteField("slot", string(target.Slot)); err != nil {
		return err
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, t.field, escapeQuotes(file.Name)))
	h.Set("Content-Type", normalizeContentType(file.ContentType))
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, newProgressReader(file.Body, file.Size, progress)); err != nil {
		return err
	}
	return mw.Close()
}

func escapeQuotes(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '"' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
