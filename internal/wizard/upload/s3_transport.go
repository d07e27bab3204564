package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/oklog/ulid/v2"
)

const defaultPresignExpiry = time.Hour

// ObjectPutter is the subset of the S3 client the transport needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ObjectPresigner signs read URLs for private buckets.
type ObjectPresigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Transport writes images to an S3 bucket and returns a locator the
// verification backend can fetch.
type S3Transport struct {
	client        ObjectPutter
	presigner     ObjectPresigner
	bucket        string
	publicBaseURL string
	expiry        time.Duration
	newID         func() string
}

type S3Option func(*S3Transport)

// WithPublicBaseURL serves locators from a public base instead of presigning.
func WithPublicBaseURL(base string) S3Option {
	return func(t *S3Transport) { t.publicBaseURL = strings.TrimRight(base, "/") }
}

func WithPresigner(p ObjectPresigner, expiry time.Duration) S3Option {
	return func(t *S3Transport) {
		t.presigner = p
		if expiry > 0 {
			t.expiry = expiry
		}
	}
}

// WithObjectID overrides object id generation (tests).
func WithObjectID(fn func() string) S3Option {
	return func(t *S3Transport) {
		if fn != nil {
			t.newID = fn
		}
	}
}

func NewS3Transport(client ObjectPutter, bucket string, opts ...S3Option) *S3Transport {
	t := &S3Transport{
		client: client,
		bucket: bucket,
		expiry: defaultPresignExpiry,
		newID:  func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewS3TransportFromClient wires presigning from the same client.
func NewS3TransportFromClient(client *s3.Client, bucket string, opts ...S3Option) *S3Transport {
	opts = append([]S3Option{WithPresigner(s3.NewPresignClient(client), defaultPresignExpiry)}, opts...)
	return NewS3Transport(client, bucket, opts...)
}

// ObjectKey lays images out as kyc/<session>/<slot>/<ulid><ext>.
func ObjectKey(target Target, id, contentType string) string {
	return path.Join("kyc", target.SessionID, string(target.Slot), id+extensionFor(contentType))
}

func (t *S3Transport) Upload(ctx context.Context, target Target, file File, progress func(int)) (Uploaded, error) {
	body, err := seekable(file)
	if err != nil {
		return Uploaded{}, err
	}
	key := ObjectKey(target, t.newID(), file.ContentType)

	_, err = t.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(t.bucket),
		Key:           aws.String(key),
		Body:          newProgressReadSeeker(body, file.Size, progress),
		ContentLength: aws.Int64(file.Size),
		ContentType:   aws.String(normalizeContentType(file.ContentType)),
		Metadata: map[string]string{
			"session-id":    target.SessionID,
			"slot":          string(target.Slot),
			"original-name": url.PathEscape(file.Name),
		},
	}, s3.WithAPIOptions(v4.SwapComputePayloadSHA256ForUnsignedPayloadMiddleware))
	if err != nil {
		if ctx.Err() != nil {
			return Uploaded{}, ctx.Err()
		}
		return Uploaded{}, fmt.Errorf("put s3://%s/%s: %w", t.bucket, key, err)
	}

	locator, err := t.locator(ctx, key)
	if err != nil {
		return Uploaded{}, err
	}
	return Uploaded{URL: locator, Name: file.Name, Size: file.Size, Type: normalizeContentType(file.ContentType)}, nil
}

func (t *S3Transport) locator(ctx context.Context, key string) (string, error) {
	if t.publicBaseURL != "" {
		return t.publicBaseURL + "/" + key, nil
	}
	if t.presigner == nil {
		return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", t.bucket, key), nil
	}
	req, err := t.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(key),
	}, func(o *s3.PresignOptions) { o.Expires = t.expiry })
	if err != nil {
		return "", fmt.Errorf("presign s3://%s/%s: %w", t.bucket, key, err)
	}
	return req.URL, nil
}

func seekable(file File) (io.ReadSeeker, error) {
	if rs, ok := file.Body.(io.ReadSeeker); ok {
		return rs, nil
	}
	data, err := io.ReadAll(io.LimitReader(file.Body, file.Size+1))
	if err != nil {
		return nil, fmt.Errorf("buffer upload body: %w", err)
	}
	if int64(len(data)) != file.Size {
		return nil, fmt.Errorf("upload body is %d bytes, declared %d", len(data), file.Size)
	}
	return bytes.NewReader(data), nil
}

// progressReadSeeker lets the SDK rewind the body on a retried attempt.
type progressReadSeeker struct {
	*progressReader
	s io.Seeker
}

func newProgressReadSeeker(rs io.ReadSeeker, total int64, report func(int)) *progressReadSeeker {
	return &progressReadSeeker{progressReader: newProgressReader(rs, total, report), s: rs}
}

func (p *progressReadSeeker) Seek(offset int64, whence int) (int64, error) {
	pos, err := p.s.Seek(offset, whence)
	if err == nil {
		p.read = pos
	}
	return pos, err
}
