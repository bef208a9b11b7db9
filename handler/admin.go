package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sajtstudio-gateway/auth"
	"sajtstudio-gateway/model"
	"sajtstudio-gateway/registry"
	"sajtstudio-gateway/utils"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"
)

// UpsertProtectedEmbed handles POST /api/protected-embeds. The slug is
// derived from the company name when not given explicitly, the password is
// derived deterministically from the server seed, and only its scrypt hash
// is stored. Re-registering a slug replaces the entry.
func (h *EmbedHandler) UpsertProtectedEmbed(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(h.config.Redis.OperationTimeout)*time.Second)
	defer cancel()

	var req model.UpsertEmbedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendJSONError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	slug := strings.ToLower(strings.TrimSpace(req.Slug))
	if slug == "" {
		slug = utils.Slugify(req.CompanyName)
	}
	if err := utils.ValidateSlug(slug, h.config.Embed.MaxSlugLength); err != nil {
		SendJSONError(w, http.StatusBadRequest, err, "Provide a slug or a company name it can be derived from")
		return
	}
	if utils.IsReservedRoute(slug) {
		SendJSONError(w, http.StatusBadRequest, errors.New("slug is reserved"), "Pick a different slug")
		return
	}

	targetURL := utils.EnsureHTTPS(req.TargetURL)
	if err := utils.ValidateTargetURL(targetURL); err != nil {
		SendJSONError(w, http.StatusBadRequest, err, "targetUrl must be an absolute http(s) URL")
		return
	}

	password, err := auth.DerivePassword(slug, h.config.PasswordSeed())
	if err != nil {
		if errors.Is(err, auth.ErrSeedNotConfigured) {
			SendJSONError(w, http.StatusServiceUnavailable, err, "Set KOSTNADSFRI_PASSWORD_SEED to enable password generation")
			return
		}
		log.Error().Err(err).Str("slug", slug).Msg("Failed to derive password")
		SendJSONError(w, http.StatusInternalServerError, errors.New("password derivation failed"), "")
		return
	}

	entry := model.ProtectedEmbed{
		Slug:            slug,
		Title:           strings.TrimSpace(req.CompanyName),
		TargetURL:       targetURL,
		FrameEmbeddable: req.FrameEmbeddable,
	}
	if err := h.store.UpsertProtectedEmbed(ctx, entry, password); err != nil {
		log.Error().Err(err).Str("slug", slug).Msg("Failed to store protected embed")
		SendJSONError(w, http.StatusInternalServerError, errors.New("storage failed"), "")
		return
	}

	log.Info().
		Str("slug", slug).
		Str("target", targetURL).
		Bool("frame_embeddable", req.FrameEmbeddable).
		Msg("Protected embed registered")

	SendJSONSuccess(w, http.StatusCreated, map[string]interface{}{
		"slug":            slug,
		"password":        password,
		"url":             h.baseURL + "/" + slug,
		"frameEmbeddable": req.FrameEmbeddable,
	})
}

// DeleteProtectedEmbed handles DELETE /api/protected-embeds/{slug}.
func (h *EmbedHandler) DeleteProtectedEmbed(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(h.config.Redis.OperationTimeout)*time.Second)
	defer cancel()

	slug := strings.ToLower(mux.Vars(r)["slug"])

	deleted, err := h.store.DeleteProtectedEmbed(ctx, slug)
	if err != nil {
		log.Error().Err(err).Str("slug", slug).Msg("Failed to delete protected embed")
		SendJSONError(w, http.StatusInternalServerError, errors.New("storage failed"), "")
		return
	}
	if !deleted {
		SendJSONError(w, http.StatusNotFound, errors.New("not found"), "")
		return
	}

	log.Info().Str("slug", slug).Msg("Protected embed deleted")
	SendJSONSuccess(w, http.StatusOK, map[string]interface{}{"deleted": true, "slug": slug})
}

// EmbedQR handles GET /api/protected-embeds/{slug}/qr: a PNG QR code of the
// public embed URL, for sharing links offline.
func (h *EmbedHandler) EmbedQR(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(h.config.Redis.OperationTimeout)*time.Second)
	defer cancel()

	slug := strings.ToLower(mux.Vars(r)["slug"])

	if _, err := h.store.GetProtectedEmbed(ctx, slug); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			SendJSONError(w, http.StatusNotFound, errors.New("not found"), "")
			return
		}
		log.Error().Err(err).Str("slug", slug).Msg("Registry lookup failed")
		SendJSONError(w, http.StatusInternalServerError, errors.New("registry unavailable"), "")
		return
	}

	size := 256
	if sizeStr := r.URL.Query().Get("size"); sizeStr != "" {
		parsed, err := strconv.Atoi(sizeStr)
		if err != nil || parsed < 128 || parsed > 1024 {
			SendJSONError(w, http.StatusBadRequest, errors.New("invalid size"), "Size must be a number between 128 and 1024")
			return
		}
		size = parsed
	}

	png, err := qrcode.Encode(h.baseURL+"/"+slug, qrcode.Medium, size)
	if err != nil {
		log.Error().Err(err).Str("slug", slug).Msg("Failed to generate QR code")
		SendJSONError(w, http.StatusInternalServerError, err, "Failed to generate QR code")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(png)
}

// GeneratePassword handles GET /api/password-generator?slug=. It returns the
// deterministic password for a slug together with registry presence flags,
// so the management tooling can tell "already registered" from "fresh".
func (h *EmbedHandler) GeneratePassword(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(h.config.Redis.OperationTimeout)*time.Second)
	defer cancel()

	slug := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("slug")))
	if err := utils.ValidateSlug(slug, h.config.Embed.MaxSlugLength); err != nil {
		SendJSONError(w, http.StatusBadRequest, err, "Provide ?slug=")
		return
	}

	password, err := auth.DerivePassword(slug, h.config.PasswordSeed())
	if err != nil {
		if errors.Is(err, auth.ErrSeedNotConfigured) {
			SendJSONError(w, http.StatusServiceUnavailable, err, "Set KOSTNADSFRI_PASSWORD_SEED to enable password generation")
			return
		}
		log.Error().Err(err).Str("slug", slug).Msg("Failed to derive password")
		SendJSONError(w, http.StatusInternalServerError, errors.New("password derivation failed"), "")
		return
	}

	_, previewErr := h.store.GetPreview(ctx, slug)
	_, embedErr := h.store.GetProtectedEmbed(ctx, slug)

	SendJSONSuccess(w, http.StatusOK, map[string]interface{}{
		"slug":           slug,
		"password":       password,
		"url":            h.baseURL + "/" + slug,
		"preview":        previewErr == nil,
		"protectedEmbed": embedErr == nil,
	})
}

// EmbedVisits handles GET /api/embed-visits?slug=&limit=. Without a slug it
// returns the global log plus per-slug counts.
func (h *EmbedHandler) EmbedVisits(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(h.config.Redis.OperationTimeout)*time.Second)
	defer cancel()

	slug := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("slug")))

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 || parsed > 10000 {
			SendJSONError(w, http.StatusBadRequest, errors.New("invalid limit"), "Limit must be a number between 1 and 10000")
			return
		}
		limit = parsed
	}

	visits, err := h.store.Visits(ctx, slug, limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read visit log")
		SendJSONError(w, http.StatusInternalServerError, errors.New("storage failed"), "")
		return
	}

	response := map[string]interface{}{
		"visits": visits,
		"count":  len(visits),
	}
	if slug == "" {
		stats, err := h.store.Stats(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Failed to compute visit stats")
		} else {
			response["stats"] = stats
		}
	}

	SendJSONSuccess(w, http.StatusOK, response)
}
