package handler

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	"sajtstudio-gateway/auth"
	"sajtstudio-gateway/middleware"
	"sajtstudio-gateway/model"
	"sajtstudio-gateway/proxy"
	"sajtstudio-gateway/registry"
	"sajtstudio-gateway/utils"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

//go:embed password_prompt.html embed_frame.html
var pageTemplateFS embed.FS

var pageTemplates = template.Must(template.ParseFS(pageTemplateFS, "password_prompt.html", "embed_frame.html"))

// promptData feeds the password prompt page.
type promptData struct {
	Slug  string
	Title string
}

// frameData feeds the embed frame page.
type frameData struct {
	Title    string
	FrameSrc string
}

const (
	previewCacheControl = "public, max-age=60, s-maxage=300"
	binaryCacheControl  = "public, max-age=31536000, immutable"
)

// ServeSlug handles /{slug} and /{slug}/{rest} for everything the internal
// routes did not claim. Order of checks: static-asset lookalikes, reserved
// segments, slug validity, protected embeds, previews (behind the feature
// flag), then 404. A protected embed always wins over a preview with the
// same slug.
func (h *EmbedHandler) ServeSlug(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	slug := vars["slug"]
	rest := vars["rest"]

	// A first segment with a dot is a stray asset request (favicon.ico,
	// robots.txt, source maps), never a slug.
	if strings.Contains(slug, ".") {
		http.NotFound(w, r)
		return
	}
	if utils.IsReservedRoute(slug) {
		http.NotFound(w, r)
		return
	}
	if err := utils.ValidateSlug(slug, h.config.Embed.MaxSlugLength); err != nil {
		SendJSONError(w, http.StatusBadRequest, err, "Invalid slug")
		return
	}
	slug = strings.ToLower(slug)

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(h.config.Redis.OperationTimeout)*time.Second)
	defer cancel()

	embedEntry, err := h.store.GetProtectedEmbed(ctx, slug)
	if err == nil {
		h.serveProtected(w, r, embedEntry, rest)
		return
	}
	if !errors.Is(err, registry.ErrNotFound) {
		log.Error().Err(err).Str("slug", slug).Msg("Registry lookup failed")
		SendJSONError(w, http.StatusInternalServerError, errors.New("registry unavailable"), "")
		return
	}

	if h.config.Preview.Enabled {
		previewEntry, err := h.store.GetPreview(ctx, slug)
		if err == nil {
			h.servePreview(w, r, previewEntry, slug, rest)
			return
		}
		if !errors.Is(err, registry.ErrNotFound) {
			log.Error().Err(err).Str("slug", slug).Msg("Registry lookup failed")
			SendJSONError(w, http.StatusInternalServerError, errors.New("registry unavailable"), "")
			return
		}
	}

	http.NotFound(w, r)
}

// serveProtected runs the password gate. An authenticated visitor gets the
// embed page; everyone else gets the prompt with status 200, so the page
// never looks broken inside a shared link preview.
func (h *EmbedHandler) serveProtected(w http.ResponseWriter, r *http.Request, entry *model.ProtectedEmbed, rest string) {
	authed := false
	if cookie, err := r.Cookie(auth.CookieName(entry.Slug)); err == nil {
		authed = h.signer.Verify(cookie.Value, entry.Slug)
	}

	// Sub-path requests belong to the proxy mount; send authenticated
	// visitors there and everyone else back to the gate.
	if rest != "" {
		if authed {
			http.Redirect(w, r, joinTarget("/api/embed-proxy/"+entry.Slug, rest, r.URL.RawQuery), http.StatusFound)
		} else {
			http.Redirect(w, r, "/"+entry.Slug, http.StatusFound)
		}
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if !authed {
		if err := pageTemplates.ExecuteTemplate(w, "password_prompt.html", promptData{Slug: entry.Slug, Title: entry.Title}); err != nil {
			log.Error().Err(err).Msg("Failed to render password prompt")
		}
		return
	}

	frameSrc := "/api/embed-proxy/" + entry.Slug + "/"
	if entry.FrameEmbeddable {
		frameSrc = entry.TargetURL
	}

	h.store.TouchProtectedEmbed(r.Context(), entry.Slug)
	h.store.LogVisit(r.Context(), model.EmbedVisit{
		Slug:      entry.Slug,
		IP:        middleware.ClientIP(r),
		UserAgent: r.Header.Get("User-Agent"),
		Referer:   r.Header.Get("Referer"),
		Path:      r.URL.Path,
		Query:     r.URL.RawQuery,
	})

	if err := pageTemplates.ExecuteTemplate(w, "embed_frame.html", frameData{Title: entry.Title, FrameSrc: frameSrc}); err != nil {
		log.Error().Err(err).Msg("Failed to render embed frame")
	}
}

// servePreview relays a public preview straight through, rewritten onto the
// slug mount.
func (h *EmbedHandler) servePreview(w http.ResponseWriter, r *http.Request, entry *model.Preview, slug, rest string) {
	base := h.previewTarget(entry)
	origin, hasSubPath := targetOrigin(base)
	if origin == "" {
		log.Error().Str("slug", slug).Str("target", base).Msg("Preview entry has an unusable target")
		SendJSONError(w, http.StatusBadGateway, errors.New("invalid preview target"), "")
		return
	}

	opts := proxy.Options{
		TargetURL:          joinTarget(base, rest, r.URL.RawQuery),
		Referer:            origin + "/",
		Rewriter:           proxy.NewRewriter(targetHost(base), "/"+slug, false),
		CacheControl:       previewCacheControl,
		BinaryCacheControl: binaryCacheControl,
		FrameProtect:       true,
		AssetPath:          "/" + rest,
	}
	if hasSubPath {
		opts.RetryOrigin = origin
	}

	if rest == "" {
		h.store.TouchPreview(r.Context(), slug)
	}

	h.relay.Serve(w, r, opts)
}

// previewTarget resolves where a preview entry actually lives: an explicit
// target URL wins, otherwise the hosted demo domain derived from the slug.
func (h *EmbedHandler) previewTarget(p *model.Preview) string {
	if p.TargetURL != "" {
		return p.TargetURL
	}
	src := p.SourceSlug
	if src == "" {
		src = p.Slug
	}
	return "https://" + src + h.config.Preview.DomainSuffix
}
