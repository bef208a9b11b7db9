package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"sajtstudio-gateway/auth"
	"sajtstudio-gateway/registry"
	"sajtstudio-gateway/utils"

	"github.com/rs/zerolog/log"
)

// verifyGeneratedRequest is the body of POST /api/generated/verify. The slug
// is optional; without it the preview registry is scanned for a matching
// derived password.
type verifyGeneratedRequest struct {
	Slug     string `json:"slug,omitempty"`
	Password string `json:"password"`
}

// VerifyGenerated handles POST /api/generated/verify: checks a
// deterministically derived demo password and answers with the slug for a
// client-side redirect. A slug without a registry entry is confirmed with a
// short HEAD probe of the derived demo URL, so freshly generated demos work
// before they are registered.
func (h *EmbedHandler) VerifyGenerated(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(h.config.Redis.OperationTimeout)*time.Second)
	defer cancel()

	var req verifyGeneratedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendJSONError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}
	if req.Password == "" {
		SendJSONError(w, http.StatusBadRequest, errors.New("missing password"), "Password is required")
		return
	}

	seed := h.config.PasswordSeed()
	if seed == "" {
		SendJSONError(w, http.StatusServiceUnavailable, auth.ErrSeedNotConfigured, "Set KOSTNADSFRI_PASSWORD_SEED to enable password verification")
		return
	}

	slug := strings.ToLower(strings.TrimSpace(req.Slug))
	if slug != "" {
		if err := utils.ValidateSlug(slug, h.config.Embed.MaxSlugLength); err != nil {
			SendJSONError(w, http.StatusBadRequest, err, "Invalid slug")
			return
		}
		derived, err := auth.DerivePassword(slug, seed)
		if err != nil || subtle.ConstantTimeCompare([]byte(derived), []byte(req.Password)) != 1 {
			SendJSONError(w, http.StatusUnauthorized, errors.New("invalid password"), "")
			return
		}
	} else {
		found, err := h.findSlugByPassword(ctx, req.Password, seed)
		if err != nil {
			log.Error().Err(err).Msg("Preview scan failed")
			SendJSONError(w, http.StatusInternalServerError, errors.New("registry unavailable"), "")
			return
		}
		if found == "" {
			SendJSONError(w, http.StatusUnauthorized, errors.New("invalid password"), "")
			return
		}
		slug = found
	}

	// A registered slug is good as-is; an unregistered one must at least
	// resolve to a live demo site.
	if _, err := h.store.GetPreview(ctx, slug); err != nil {
		if !errors.Is(err, registry.ErrNotFound) {
			log.Error().Err(err).Str("slug", slug).Msg("Registry lookup failed")
			SendJSONError(w, http.StatusInternalServerError, errors.New("registry unavailable"), "")
			return
		}
		demoURL := "https://" + slug + h.config.Preview.DomainSuffix
		probeTimeout := time.Duration(h.config.Proxy.ProbeTimeoutSeconds) * time.Second
		ok, probeErr := h.relay.Probe(r.Context(), demoURL, probeTimeout)
		if probeErr != nil || !ok {
			log.Warn().Err(probeErr).Str("slug", slug).Str("demo_url", demoURL).Msg("Demo site probe failed")
			SendJSONError(w, http.StatusUnauthorized, errors.New("invalid password"), "")
			return
		}
	}

	log.Info().Str("slug", slug).Msg("Generated demo password verified")
	SendJSONSuccess(w, http.StatusOK, map[string]interface{}{
		"valid":    true,
		"slug":     slug,
		"redirect": "/" + slug,
	})
}

// findSlugByPassword scans registered previews for the one whose derived
// password matches.
func (h *EmbedHandler) findSlugByPassword(ctx context.Context, password, seed string) (string, error) {
	slugs, err := h.store.PreviewSlugs(ctx)
	if err != nil {
		return "", err
	}
	for _, slug := range slugs {
		derived, err := auth.DerivePassword(slug, seed)
		if err != nil {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(derived), []byte(password)) == 1 {
			return slug, nil
		}
	}
	return "", nil
}
