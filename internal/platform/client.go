package platform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"golang.org/x/time/rate"

	"github.com/maheshrc27/publisher/internal/media"
	"github.com/maheshrc27/publisher/internal/models"
)

const maxResponseBytes = 4 << 20

// MediaSource resolves a media reference on a post.
type MediaSource interface {
	URL(ctx context.Context, ref string) (string, error)
	Open(ctx context.Context, ref string) (io.ReadCloser, string, error)
}

// Options configures an adapter. Zero values select production defaults.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	// RateLimit is requests per second towards the platform; 0 disables limiting.
	RateLimit float64
	Burst     int
	Media     MediaSource
	// PollInterval spaces status checks on asynchronous uploads.
	PollInterval time.Duration
}

type client struct {
	platform string
	baseURL  string
	http     *http.Client
	limiter  *rate.Limiter
	headers  map[string]string
}

// NewHTTPClient returns a client without an overall Timeout. Only the wait
// for response headers is bounded; the per-call context deadline covers the
// rest, including media streamed into an upload.
func NewHTTPClient(headerTimeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = headerTimeout
	return &http.Client{Transport: transport}
}

func newClient(platform, defaultBase string, opts Options) *client {
	base := opts.BaseURL
	if base == "" {
		base = defaultBase
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return &client{
		platform: platform,
		baseURL:  strings.TrimRight(base, "/"),
		http:     hc,
		limiter:  limiter,
		headers:  map[string]string{},
	}
}

func (c *client) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL + path
}

func (c *client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return Classify(c.platform, err)
	}
	return nil
}

// do sends req and decodes a 2xx JSON body into out. Non-2xx responses are
// mapped onto the error taxonomy. A 2xx body that cannot be decoded yields an
// ambiguous error because the remote side has already acted.
func (c *client) do(req *http.Request, token string, out interface{}) (http.Header, error) {
	if err := c.wait(req.Context()); err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, Classify(c.platform, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &Error{Platform: c.platform, Kind: KindRemoteUnavailable, Message: "read response", Ambiguous: resp.StatusCode < 300, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.Header, c.statusError(resp.StatusCode, body)
	}

	if out != nil && len(bytes.TrimSpace(body)) > 0 {
		if err := sonic.Unmarshal(body, out); err != nil {
			return resp.Header, &Error{
				Platform:  c.platform,
				Kind:      KindRemoteUnavailable,
				Message:   "unreadable response after success status",
				Ambiguous: true,
				Err:       err,
			}
		}
	}
	return resp.Header, nil
}

func (c *client) statusError(status int, body []byte) *Error {
	kind := KindRemoteRejected
	if status == http.StatusTooManyRequests || status >= 500 {
		kind = KindRemoteUnavailable
	}
	return &Error{
		Platform: c.platform,
		Kind:     kind,
		Message:  fmt.Sprintf("status %d: %s", status, remoteMessage(body)),
	}
}

// remoteMessage pulls a human readable message out of the common error shapes.
func remoteMessage(body []byte) string {
	var shape struct {
		Error  interface{} `json:"error"`
		Msg    string      `json:"message"`
		Detail string      `json:"detail"`
	}
	if err := sonic.Unmarshal(body, &shape); err == nil {
		switch e := shape.Error.(type) {
		case string:
			if e != "" {
				return e
			}
		case map[string]interface{}:
			if m, ok := e["message"].(string); ok && m != "" {
				return m
			}
		}
		if shape.Msg != "" {
			return shape.Msg
		}
		if shape.Detail != "" {
			return shape.Detail
		}
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

func (c *client) getJSON(ctx context.Context, path, token string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(path), nil)
	if err != nil {
		return err
	}
	_, err = c.do(req, token, out)
	return err
}

func (c *client) postJSON(ctx context.Context, path, token string, in, out interface{}) (http.Header, error) {
	var body io.Reader
	if in != nil {
		data, err := sonic.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("marshal %s request: %w", c.platform, err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	return c.do(req, token, out)
}

func (c *client) postForm(ctx context.Context, path, token string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	_, err = c.do(req, token, out)
	return err
}

func (c *client) postMultipart(ctx context.Context, path, token, field, filename, contentType string, r io.Reader, fields map[string]string, out interface{}) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return err
		}
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, r); err != nil {
		return Classify(c.platform, fmt.Errorf("read media: %w", err))
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	_, err = c.do(req, token, out)
	return err
}

func (c *client) put(ctx context.Context, rawURL, token, contentType string, r io.Reader) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.url(rawURL), r)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	_, err = c.do(req, token, nil)
	return err
}

// openMedia fetches a media item and checks that its bytes match the declared type.
func (c *client) openMedia(ctx context.Context, src MediaSource, ref string, declared models.MediaType) (io.ReadCloser, io.Reader, string, error) {
	if src == nil {
		return nil, nil, "", newError(c.platform, KindRemoteUnavailable, "no media source configured")
	}
	body, _, err := src.Open(ctx, ref)
	if err != nil {
		return nil, nil, "", &Error{Platform: c.platform, Kind: KindRemoteUnavailable, Message: "fetch media " + ref, Err: err}
	}
	kind, mime, r, err := media.Sniff(body)
	if err != nil {
		body.Close()
		if errors.Is(err, media.ErrUnknownType) {
			return nil, nil, "", unsupported(c.platform, "cannot detect type of %s", ref)
		}
		return nil, nil, "", &Error{Platform: c.platform, Kind: KindRemoteUnavailable, Message: "read media " + ref, Err: err}
	}
	if kind != declared {
		body.Close()
		return nil, nil, "", unsupported(c.platform, "%s is %s, declared %s", ref, kind, declared)
	}
	return body, r, mime, nil
}

func (c *client) publicURL(ctx context.Context, src MediaSource, ref string) (string, error) {
	if src == nil {
		return ref, nil
	}
	u, err := src.URL(ctx, ref)
	if err != nil {
		return "", &Error{Platform: c.platform, Kind: KindRemoteUnavailable, Message: "resolve media " + ref, Err: err}
	}
	return u, nil
}
