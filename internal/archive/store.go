// Package archive copies inbound media from the provider into S3 so it
// outlives the provider's retention window.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/vatosalfa/agenda-messaging/pkg/logging"
)

// S3API is the subset of the S3 client used by MediaArchiver.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// HTTPDoer fetches media URLs.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

const defaultMaxBytes = 16 << 20

// MediaArchiver downloads provider media with basic auth and stores it in S3.
type MediaArchiver struct {
	bucket     string
	s3Client   S3API
	http       HTTPDoer
	accountSID string
	authToken  string
	maxBytes   int64
	now        func() time.Time
	logger     *logging.Logger
}

// Option customizes a MediaArchiver.
type Option func(*MediaArchiver)

// WithHTTPClient overrides the downloader.
func WithHTTPClient(c HTTPDoer) Option {
	return func(a *MediaArchiver) {
		if c != nil {
			a.http = c
		}
	}
}

// WithMaxBytes caps the size of an archived object.
func WithMaxBytes(n int64) Option {
	return func(a *MediaArchiver) {
		if n > 0 {
			a.maxBytes = n
		}
	}
}

// NewMediaArchiver builds an archiver. With an empty bucket every call is a no-op.
func NewMediaArchiver(s3Client S3API, bucket, accountSID, authToken string, logger *logging.Logger, opts ...Option) *MediaArchiver {
	if logger == nil {
		logger = logging.Default()
	}
	a := &MediaArchiver{
		bucket:     bucket,
		s3Client:   s3Client,
		http:       &http.Client{Timeout: 20 * time.Second},
		accountSID: accountSID,
		authToken:  authToken,
		maxBytes:   defaultMaxBytes,
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Enabled reports whether archival is configured.
func (a *MediaArchiver) Enabled() bool {
	return a != nil && a.bucket != "" && a.s3Client != nil
}

// Archive copies req.URL into the bucket and returns the object key.
func (a *MediaArchiver) Archive(ctx context.Context, req Request) (string, error) {
	if !a.Enabled() {
		return "", nil
	}
	if strings.TrimSpace(req.URL) == "" {
		return "", errors.New("archive: media url required")
	}

	data, contentType, err := a.download(ctx, req)
	if err != nil {
		return "", err
	}

	at := req.ReceivedAt
	if at.IsZero() {
		at = a.now()
	}
	at = at.UTC()
	convHash := HashPhone(req.ConversationID)
	key := objectKey(convHash, req.MessageSID, contentType, at)

	_, err = a.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"message-sid":       req.MessageSID,
			"conversation-hash": convHash,
		},
	})
	if err != nil {
		return "", fmt.Errorf("archive: s3 put %s: %w", key, err)
	}
	a.logger.Info("archived inbound media", "s3_key", key, "content_type", contentType, "size", len(data))

	entry := ManifestEntry{
		ConversationHash: convHash,
		MessageSID:       req.MessageSID,
		S3Key:            key,
		ContentType:      contentType,
		Size:             int64(len(data)),
		ArchivedAt:       at.Format(time.RFC3339),
	}
	if err := a.AppendManifest(ctx, entry); err != nil {
		a.logger.Warn("failed to append manifest", "error", err, "s3_key", key)
	}
	return key, nil
}

func (a *MediaArchiver) download(ctx context.Context, req Request) ([]byte, string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("archive: build media request: %w", err)
	}
	if a.accountSID != "" {
		httpReq.SetBasicAuth(a.accountSID, a.authToken)
	}
	resp, err := a.http.Do(httpReq)
	if err != nil {
		return nil, "", fmt.Errorf("archive: fetch media: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("archive: fetch media: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, a.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("archive: read media: %w", err)
	}
	if int64(len(data)) > a.maxBytes {
		return nil, "", fmt.Errorf("archive: media exceeds %d bytes", a.maxBytes)
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = resp.Header.Get("Content-Type")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return data, contentType, nil
}

// AppendManifest writes entry as its own object under the month's manifest
// prefix. Entries keyed by message SID overwrite themselves on redelivery.
func (a *MediaArchiver) AppendManifest(ctx context.Context, entry ManifestEntry) error {
	if !a.Enabled() {
		return nil
	}
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("archive: marshal manifest entry: %w", err)
	}

	key := manifestKey(entry, a.now().UTC())
	_, err = a.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(append(body, '\n')),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put manifest %s: %w", key, err)
	}
	return nil
}

// manifestKey is media/v1/manifests/YYYY-MM/<conversation hash>-<sid>.json.
// Listing a month's prefix yields its manifest.
func manifestKey(entry ManifestEntry, now time.Time) string {
	at := now
	if parsed, err := time.Parse(time.RFC3339, entry.ArchivedAt); err == nil {
		at = parsed.UTC()
	}
	name := entry.MessageSID
	if name == "" {
		name = uuid.NewString()
	}
	if entry.ConversationHash != "" {
		name = entry.ConversationHash + "-" + name
	}
	return path.Join("media/v1/manifests",
		fmt.Sprintf("%d-%02d", at.Year(), at.Month()),
		name+".json",
	)
}

func objectKey(convHash, messageSID, contentType string, at time.Time) string {
	name := messageSID
	if name == "" {
		name = fmt.Sprintf("%d", at.UnixNano())
	}
	return path.Join("media/v1",
		fmt.Sprintf("%d/%02d/%02d", at.Year(), at.Month(), at.Day()),
		convHash,
		name+"-0"+extensionFor(contentType),
	)
}

func extensionFor(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	switch mediaType {
	case "image/jpeg":
		return ".jpg"
	case "audio/ogg":
		return ".ogg"
	case "application/pdf":
		return ".pdf"
	}
	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}
