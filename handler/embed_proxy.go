package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"sajtstudio-gateway/auth"
	"sajtstudio-gateway/middleware"
	"sajtstudio-gateway/model"
	"sajtstudio-gateway/proxy"
	"sajtstudio-gateway/registry"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// EmbedProxy handles /api/embed-proxy/{slug}[/{rest}]. Every request is
// gated on the per-slug session cookie; the upstream site is fetched
// server-side and rewritten so all of its links and assets resolve back
// through this mount.
func (h *EmbedHandler) EmbedProxy(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(h.config.Redis.OperationTimeout)*time.Second)
	defer cancel()

	vars := mux.Vars(r)
	slug := strings.ToLower(vars["slug"])
	rest := vars["rest"]

	entry, err := h.store.GetProtectedEmbed(ctx, slug)
	if errors.Is(err, registry.ErrNotFound) {
		SendJSONError(w, http.StatusNotFound, errors.New("not found"), "")
		return
	} else if err != nil {
		log.Error().Err(err).Str("slug", slug).Msg("Registry lookup failed")
		SendJSONError(w, http.StatusInternalServerError, errors.New("registry unavailable"), "")
		return
	}

	cookie, err := r.Cookie(auth.CookieName(slug))
	if err != nil || !h.signer.Verify(cookie.Value, slug) {
		SendJSONError(w, http.StatusUnauthorized, errors.New("authentication required"), "Unlock the demo at /"+slug+" first")
		return
	}

	mountPath := "/api/embed-proxy/" + slug
	origin, hasSubPath := targetOrigin(entry.TargetURL)
	if origin == "" {
		log.Error().Str("slug", slug).Str("target", entry.TargetURL).Msg("Embed entry has an unusable target")
		SendJSONError(w, http.StatusBadGateway, errors.New("invalid embed target"), "")
		return
	}

	opts := proxy.Options{
		TargetURL:          joinTarget(entry.TargetURL, rest, r.URL.RawQuery),
		Referer:            origin + "/",
		Rewriter:           proxy.NewRewriter(targetHost(entry.TargetURL), mountPath, true),
		CacheControl:       "no-store",
		BinaryCacheControl: binaryCacheControl,
		FrameProtect:       true,
		AssetPath:          "/" + rest,
	}
	if hasSubPath {
		opts.RetryOrigin = origin
	}

	// Bookkeeping only on page navigations, not on every asset fetch.
	if rest == "" {
		h.store.TouchProtectedEmbed(r.Context(), slug)
		h.store.LogVisit(r.Context(), model.EmbedVisit{
			Slug:      slug,
			IP:        middleware.ClientIP(r),
			UserAgent: r.Header.Get("User-Agent"),
			Referer:   r.Header.Get("Referer"),
			Path:      r.URL.Path,
			Query:     r.URL.RawQuery,
		})
	}

	h.relay.Serve(w, r, opts)
}
