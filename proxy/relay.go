package proxy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"sajtstudio-gateway/config"

	"github.com/rs/zerolog/log"
)

const maxRelayBody = 32 << 20 // 32 MB

// Relay fetches remote resources on behalf of the caller and writes them
// back, with bounded timeouts and selective header forwarding. It is a
// synchronous relay, not a resilient client: no automatic retries beyond the
// single MIME-mismatch fallback.
type Relay struct {
	client       *http.Client
	timeout      time.Duration
	retryTimeout time.Duration
}

// Options controls one relayed fetch.
type Options struct {
	// TargetURL is the fully constructed upstream URL (origin+path+query).
	TargetURL string
	// Referer sent upstream; usually the target origin.
	Referer string
	// Rewriter applied to text/html bodies. Nil relays HTML untouched.
	Rewriter *Rewriter
	// CacheControl set on non-binary success responses. Never forwarded
	// blindly from upstream.
	CacheControl string
	// BinaryCacheControl set on binary success responses (fonts, images).
	// Empty falls back to CacheControl.
	BinaryCacheControl string
	// FrameProtect sets X-Frame-Options: SAMEORIGIN on relayed HTML so the
	// relayed copy cannot itself be re-embedded elsewhere.
	FrameProtect bool
	// RetryOrigin, when non-empty, enables the MIME-mismatch fallback:
	// if upstream answers text/html for a static-asset path, the fetch is
	// retried once from this origin root with a shorter timeout. That
	// covers SPAs whose static files live at the domain root while the
	// registry target includes a sub-path.
	RetryOrigin string
	// AssetPath is the upstream path, used for binary and MIME-mismatch
	// detection.
	AssetPath string
}

// NewRelay builds a relay with the configured timeouts.
func NewRelay(cfg config.ProxyConfig) *Relay {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	return &Relay{
		client: &http.Client{
			// Redirects are followed upstream; the caller only ever sees
			// the final response.
			Timeout: timeout,
		},
		timeout:      timeout,
		retryTimeout: time.Duration(cfg.RetryTimeoutSeconds) * time.Second,
	}
}

// binaryContent reports content that must be relayed byte-for-byte.
func binaryContent(contentType, path string) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "font") ||
		strings.Contains(ct, "woff") ||
		strings.Contains(ct, "octet-stream") ||
		strings.HasPrefix(ct, "image/") ||
		strings.HasPrefix(ct, "audio/") ||
		strings.HasPrefix(ct, "video/") {
		return true
	}
	return binaryExt.MatchString(path)
}

var binaryExt = regexp.MustCompile(`(?i)\.(woff2?|ttf|otf|eot|png|jpe?g|gif|webp|avif|ico|mp4|webm|pdf)$`)

// nonHTMLExt matches asset paths that must never come back as text/html.
var nonHTMLExt = regexp.MustCompile(`(?i)\.(js|mjs|css|json|map|xml|txt|svg|woff2?|ttf|otf|eot|png|jpe?g|gif|webp|avif|ico|mp4|webm|pdf)$`)

func mimeMismatch(contentType, path string) bool {
	return strings.Contains(contentType, "text/html") && nonHTMLExt.MatchString(path)
}

func (re *Relay) buildRequest(ctx context.Context, r *http.Request, target, referer string) (*http.Request, error) {
	var body io.Reader
	if r.Method != http.MethodGet && r.Method != http.MethodHead && r.Body != nil {
		body = r.Body
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", headerOr(r, "User-Agent", "Mozilla/5.0"))
	req.Header.Set("Accept", headerOr(r, "Accept", "*/*"))
	req.Header.Set("Accept-Language", headerOr(r, "Accept-Language", "sv-SE,sv;q=0.9"))
	if body != nil {
		req.Header.Set("Content-Type", headerOr(r, "Content-Type", "application/x-www-form-urlencoded"))
	}
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
	return req, nil
}

func headerOr(r *http.Request, key, fallback string) string {
	if v := r.Header.Get(key); v != "" {
		return v
	}
	return fallback
}

// Serve fetches opts.TargetURL and relays the response. Upstream statuses
// are passed through as-is; only timeouts (504) and transport failures (502)
// are translated.
func (re *Relay) Serve(w http.ResponseWriter, r *http.Request, opts Options) {
	ctx, cancel := context.WithTimeout(r.Context(), re.timeout)
	defer cancel()

	req, err := re.buildRequest(ctx, r, opts.TargetURL, opts.Referer)
	if err != nil {
		log.Error().Err(err).Str("target", opts.TargetURL).Msg("Failed to build upstream request")
		http.Error(w, "Proxy error", http.StatusInternalServerError)
		return
	}

	resp, err := re.client.Do(req)
	if err != nil {
		re.writeFetchError(w, err, opts.TargetURL)
		return
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")

	// MIME-mismatch fallback, GET only.
	if r.Method == http.MethodGet && opts.RetryOrigin != "" && mimeMismatch(contentType, opts.AssetPath) {
		if retry := re.retryFromOrigin(r, opts); retry != nil {
			defer retry.Body.Close()
			retryCt := retry.Header.Get("Content-Type")
			if !mimeMismatch(retryCt, opts.AssetPath) {
				log.Info().
					Str("path", opts.AssetPath).
					Str("content_type", retryCt).
					Msg("MIME mismatch fixed by origin-root retry")
				re.writeResponse(w, retry, opts)
				return
			}
		}
	}

	re.writeResponse(w, resp, opts)
}

// retryFromOrigin refetches the asset path from the target's origin root.
// Returns nil when the retry fails; the caller falls back to the original
// response.
func (re *Relay) retryFromOrigin(r *http.Request, opts Options) *http.Response {
	rootURL, err := url.Parse(opts.RetryOrigin)
	if err != nil {
		return nil
	}
	rootURL.Path = opts.AssetPath
	rootURL.RawQuery = r.URL.RawQuery

	ctx, cancel := context.WithTimeout(r.Context(), re.retryTimeout)

	req, err := re.buildRequest(ctx, r, rootURL.String(), opts.Referer)
	if err != nil {
		cancel()
		return nil
	}

	resp, err := re.client.Do(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		if resp != nil {
			resp.Body.Close()
		}
		cancel()
		log.Warn().Str("retry_url", rootURL.String()).Msg("Origin-root retry failed")
		return nil
	}

	// Keep the context alive until the body is consumed by the caller.
	resp.Body = &cancelReadCloser{ReadCloser: resp.Body, cancel: cancel}
	return resp
}

type cancelReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func (re *Relay) writeFetchError(w http.ResponseWriter, err error, target string) {
	if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		log.Warn().Str("target", target).Msg("Upstream fetch timed out")
		http.Error(w, "Upstream timeout", http.StatusGatewayTimeout)
		return
	}
	log.Error().Err(err).Str("target", target).Msg("Upstream fetch failed")
	http.Error(w, "Upstream unreachable", http.StatusBadGateway)
}

func isTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

func (re *Relay) writeResponse(w http.ResponseWriter, resp *http.Response, opts Options) {
	contentType := resp.Header.Get("Content-Type")
	isHTML := strings.Contains(contentType, "text/html")
	isBinary := binaryContent(contentType, strings.ToLower(opts.AssetPath))

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}

	// Cache policy is the relay's decision, never copied from upstream.
	cacheControl := opts.CacheControl
	if isBinary && opts.BinaryCacheControl != "" {
		cacheControl = opts.BinaryCacheControl
	}
	if cacheControl != "" {
		w.Header().Set("Cache-Control", cacheControl)
	}

	if isHTML && opts.FrameProtect {
		w.Header().Set("X-Frame-Options", "SAMEORIGIN")
	}

	if opts.Rewriter != nil {
		respHeader := resp.Header.Clone()
		opts.Rewriter.RewriteHeaders(respHeader)
		for _, key := range []string{"Location", "Content-Location"} {
			if v := respHeader.Get(key); v != "" {
				w.Header().Set(key, v)
			}
		}
	}

	if isHTML && !isBinary && opts.Rewriter != nil {
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxRelayBody))
		if err != nil {
			log.Error().Err(err).Msg("Failed to read upstream body")
			http.Error(w, "Upstream read failed", http.StatusBadGateway)
			return
		}
		w.WriteHeader(resp.StatusCode)
		if _, err := w.Write([]byte(opts.Rewriter.Rewrite(string(body)))); err != nil {
			log.Error().Err(err).Msg("Failed to write relayed body")
		}
		return
	}

	// Everything else is relayed byte-for-byte.
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, io.LimitReader(resp.Body, maxRelayBody)); err != nil {
		log.Error().Err(err).Msg("Failed to copy relayed body")
	}
}

// Probe issues a HEAD request with a short timeout, used by the generated
// password check to confirm a demo site exists. A nil error with ok=false
// means upstream answered 404.
func (re *Relay) Probe(ctx context.Context, target string, timeout time.Duration) (ok bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; Sajtstudio/1.0)")

	resp, err := re.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode != http.StatusNotFound, nil
}
