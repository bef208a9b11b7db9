package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"sajtstudio-gateway/auth"
	"sajtstudio-gateway/middleware"
	"sajtstudio-gateway/model"
	"sajtstudio-gateway/utils"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

const (
	maxPasswordAttempts   = 5
	attemptWindow         = 15 * time.Minute
	attemptKeyFormat      = "password_attempts:%s:%s"
	errInvalidCredentials = "Invalid password"
)

// VerifyEmbedPassword handles POST /api/embed-auth/{slug}. A correct
// password mints a signed session token and sets it as the per-slug cookie;
// wrong passwords and unknown slugs both come back as a plain 401.
func (h *EmbedHandler) VerifyEmbedPassword(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(h.config.Redis.OperationTimeout)*time.Second)
	defer cancel()

	slug := mux.Vars(r)["slug"]
	if err := utils.ValidateSlug(slug, h.config.Embed.MaxSlugLength); err != nil {
		SendJSONError(w, http.StatusBadRequest, err, "Invalid slug")
		return
	}

	var req model.VerifyPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendJSONError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}
	if req.Password == "" {
		SendJSONError(w, http.StatusBadRequest, errors.New("missing password"), "Password is required")
		return
	}

	// Brute-force guard: 5 attempts per slug+IP per 15 minutes, tracked in
	// Redis so it survives restarts. A Redis hiccup here fails open.
	ip := middleware.ClientIP(r)
	attemptKey := fmt.Sprintf(attemptKeyFormat, slug, ip)
	attempts, err := h.redis.Incr(ctx, attemptKey).Result()
	if err == nil {
		if attempts == 1 {
			h.redis.Expire(ctx, attemptKey, attemptWindow)
		}
		if attempts > maxPasswordAttempts {
			log.Warn().Str("slug", slug).Str("ip", ip).Msg("Password attempts rate limited")
			SendJSONError(w, http.StatusTooManyRequests, errors.New("rate limited"), "Too many failed attempts. Please try again later.")
			return
		}
	}

	if !h.store.VerifyPassword(ctx, slug, req.Password) {
		log.Warn().Str("slug", slug).Str("ip", ip).Msg("Failed embed password attempt")
		SendJSONError(w, http.StatusUnauthorized, errors.New(errInvalidCredentials), "")
		return
	}

	ttl := time.Duration(h.config.Embed.SessionTTLSeconds) * time.Second
	token, err := h.signer.Mint(slug, ttl)
	if err != nil {
		if errors.Is(err, auth.ErrSecretRequired) {
			SendJSONError(w, http.StatusServiceUnavailable, err, "Set EMBED_AUTH_SECRET to enable embed sessions")
			return
		}
		log.Error().Err(err).Str("slug", slug).Msg("Failed to mint session token")
		SendJSONError(w, http.StatusInternalServerError, errors.New("session error"), "")
		return
	}

	h.redis.Del(ctx, attemptKey)

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName(slug),
		Value:    token,
		Path:     "/",
		MaxAge:   h.config.Embed.SessionTTLSeconds,
		HttpOnly: true,
		Secure:   h.config.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})

	log.Info().Str("slug", slug).Msg("Embed session created")
	SendJSONSuccess(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"redirect": "/" + slug,
	})
}
