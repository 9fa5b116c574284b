// Package media turns media references on a post into something a platform
// can consume: a public URL or a byte stream.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/h2non/filetype"

	"github.com/maheshrc27/publisher/internal/models"
)

const r2Scheme = "r2://"

var (
	ErrNoStore     = errors.New("r2 storage is not configured")
	ErrUnknownType = errors.New("unrecognised media type")
)

type Resolver struct {
	http       *http.Client
	store      *R2Store
	presignTTL time.Duration
}

// NewResolver builds a resolver. store may be nil when only http(s) media is
// used. Downloads are bounded by the caller's context, so httpClient should
// not carry an overall Timeout.
func NewResolver(httpClient *http.Client, store *R2Store) *Resolver {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Resolver{
		http:       httpClient,
		store:      store,
		presignTTL: time.Hour,
	}
}

func IsR2(ref string) bool {
	return strings.HasPrefix(ref, r2Scheme)
}

// URL returns a URL the remote platform can fetch on its own.
func (r *Resolver) URL(ctx context.Context, ref string) (string, error) {
	if !IsR2(ref) {
		return ref, nil
	}
	if r.store == nil {
		return "", ErrNoStore
	}
	return r.store.PresignedURL(ctx, strings.TrimPrefix(ref, r2Scheme), r.presignTTL)
}

// Open returns the media bytes and the content type reported by the source.
func (r *Resolver) Open(ctx context.Context, ref string) (io.ReadCloser, string, error) {
	if IsR2(ref) {
		if r.store == nil {
			return nil, "", ErrNoStore
		}
		return r.store.Get(ctx, strings.TrimPrefix(ref, r2Scheme))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download media: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, "", fmt.Errorf("download media: unexpected status %d", resp.StatusCode)
	}
	return resp.Body, resp.Header.Get("Content-Type"), nil
}

// Sniff detects the media type and MIME value from the first bytes of r. The
// returned reader yields the full stream, including the bytes consumed for
// detection.
func Sniff(r io.Reader) (models.MediaType, string, io.Reader, error) {
	head := make([]byte, 261)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", "", nil, err
	}
	head = head[:n]
	full := io.MultiReader(bytes.NewReader(head), r)

	kind, _ := filetype.Match(head)
	switch {
	case kind.MIME.Value == "image/gif":
		return models.MediaTypeGIF, kind.MIME.Value, full, nil
	case filetype.IsImage(head):
		return models.MediaTypeImage, kind.MIME.Value, full, nil
	case filetype.IsVideo(head):
		return models.MediaTypeVideo, kind.MIME.Value, full, nil
	}
	return "", "", full, ErrUnknownType
}
