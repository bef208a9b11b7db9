package handler

import (
	"fmt"
	"net/url"
	"strings"

	"sajtstudio-gateway/auth"
	"sajtstudio-gateway/config"
	"sajtstudio-gateway/proxy"
	"sajtstudio-gateway/registry"

	"github.com/go-redis/redis/v8"
)

// EmbedHandler serves the slug routes and the embed API: classification,
// password gating, proxied relaying and registry management.
type EmbedHandler struct {
	redis   *redis.Client
	store   *registry.Store
	config  config.Config
	relay   *proxy.Relay
	signer  *auth.TokenSigner
	baseURL string
}

// NewEmbedHandler wires the handler's dependencies. baseURL falls back to
// scheme://ip:port when not configured explicitly.
func NewEmbedHandler(redisClient *redis.Client, store *registry.Store, cfg config.Config, relay *proxy.Relay, signer *auth.TokenSigner) *EmbedHandler {
	baseURL := cfg.WebServer.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("%s://%s:%s", cfg.WebServer.Scheme, cfg.WebServer.IP, cfg.WebServer.Port)
	}
	return &EmbedHandler{
		redis:   redisClient,
		store:   store,
		config:  cfg,
		relay:   relay,
		signer:  signer,
		baseURL: baseURL,
	}
}

// joinTarget appends a sub-path and query onto a registry target URL.
func joinTarget(base, rest, rawQuery string) string {
	target := strings.TrimSuffix(base, "/")
	if rest != "" {
		target += "/" + strings.TrimPrefix(rest, "/")
	}
	if rawQuery != "" {
		target += "?" + rawQuery
	}
	return target
}

// targetOrigin returns scheme://host of a target URL, and whether the target
// carries a sub-path of its own (which enables the origin-root retry).
func targetOrigin(rawURL string) (origin string, hasSubPath bool) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return "", false
	}
	return parsed.Scheme + "://" + parsed.Host, parsed.Path != "" && parsed.Path != "/"
}

// targetHost returns the host of a target URL for the rewriter.
func targetHost(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Host
}
