package proxy

import (
	"net/http"
	"regexp"
	"strings"
)

// Rewriter rewrites references to the upstream host inside fetched HTML so
// navigation and asset loads route back through the gateway. It is a
// best-effort textual rewrite, not an HTML parse: only attribute values and
// CSS url() contents are touched, never tag structure. Some exotic URL forms
// may slip through, which is an accepted trade-off for speed and robustness.
type Rewriter struct {
	mountPath    string
	absolute     *regexp.Regexp
	protoRel     *regexp.Regexp
	rootRelative bool
}

var (
	attrRootRel   = regexp.MustCompile(`(?i)(href|src|action)=(["'])/([^/])`)
	srcsetAttr    = regexp.MustCompile(`(?i)srcset=(["'])([^"']+)(["'])`)
	srcsetEntry   = regexp.MustCompile(`(^|[\s,])/([^/\s][^\s,]*)`)
	cssURLRootRel = regexp.MustCompile(`(?i)url\((["']?)/([^/)"'][^)"']*)(["']?)\)`)
)

// NewRewriter builds a rewriter for one upstream host, served under
// mountPath (e.g. "/demo-x" or "/api/embed-proxy/demo-x"). When
// rootRelative is set, the remote site's root-relative links are prefixed
// with the mount path as well; that variant is used by the cookie-gated
// embed proxy, whose mount is not the site root.
func NewRewriter(targetHost, mountPath string, rootRelative bool) *Rewriter {
	host := regexp.QuoteMeta(targetHost)
	return &Rewriter{
		mountPath:    strings.TrimSuffix(mountPath, "/"),
		absolute:     regexp.MustCompile(`(?i)https?://` + host + `(/[^"'>\s]*)?`),
		protoRel:     regexp.MustCompile(`(?i)//` + host + `(/[^"'>\s]*)?`),
		rootRelative: rootRelative,
	}
}

// Rewrite maps upstream URLs inside an HTML (or CSS) body onto the local
// mount path.
func (rw *Rewriter) Rewrite(body string) string {
	// Root-relative values are rewritten before the host passes, so the
	// host passes never see (and re-prefix) their own output.
	if rw.rootRelative {
		body = attrRootRel.ReplaceAllString(body, "$1=$2"+rw.mountPath+"/$3")
		body = srcsetAttr.ReplaceAllStringFunc(body, func(match string) string {
			sub := srcsetAttr.FindStringSubmatch(match)
			rewritten := srcsetEntry.ReplaceAllString(sub[2], "$1"+rw.mountPath+"/$2")
			return "srcset=" + sub[1] + rewritten + sub[3]
		})
		body = cssURLRootRel.ReplaceAllString(body, "url($1"+rw.mountPath+"/$2$3)")
	}

	// Absolute URLs before protocol-relative; the "//host" pass would
	// otherwise eat the tail of "https://host/...".
	body = rw.absolute.ReplaceAllString(body, rw.mountPath+"$1")
	body = rw.protoRel.ReplaceAllString(body, rw.mountPath+"$1")

	return body
}

// RewriteHeaders maps upstream redirect targets back through the gateway.
func (rw *Rewriter) RewriteHeaders(h http.Header) {
	for _, key := range []string{"Location", "Content-Location"} {
		if v := h.Get(key); v != "" {
			v = rw.absolute.ReplaceAllString(v, rw.mountPath+"$1")
			v = rw.protoRel.ReplaceAllString(v, rw.mountPath+"$1")
			if rw.rootRelative && strings.HasPrefix(v, "/") && !strings.HasPrefix(v, "//") && !strings.HasPrefix(v, rw.mountPath) {
				v = rw.mountPath + v
			}
			h.Set(key, v)
		}
	}
}
