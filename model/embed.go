package model

import "time"

// Preview is a publicly viewable demo slug. Previews are only served while
// the global preview feature flag is enabled.
type Preview struct {
	Slug         string    `json:"slug"`
	CompanyName  string    `json:"companyName,omitempty"`
	Domain       string    `json:"domain,omitempty"`
	SourceSlug   string    `json:"sourceSlug,omitempty"` // hosted slug when the public slug differs
	TargetURL    string    `json:"targetURL,omitempty"`  // direct target; overrides slug-derived hosting URL
	CreatedAt    time.Time `json:"createdAt"`
	LastAccessed time.Time `json:"lastAccessed"`
}

// ProtectedEmbed is a password-gated demo slug pointing at an external site.
// Protected embeds are always served, independent of the preview flag.
type ProtectedEmbed struct {
	Slug         string    `json:"slug"`
	Title        string    `json:"title,omitempty"`
	TargetURL    string    `json:"targetURL"`
	PasswordSalt string    `json:"passwordSalt"`
	PasswordHash string    `json:"passwordHash"`
	// FrameEmbeddable records whether the target permits framing; when true
	// the gate page embeds the target directly instead of going through the
	// server-side proxy.
	FrameEmbeddable bool      `json:"frameEmbeddable"`
	CreatedAt       time.Time `json:"createdAt"`
	LastAccessed    time.Time `json:"lastAccessed"`
}

// EmbedVisit is an append-only access record for a protected embed.
// Recording is fire-and-forget and never affects the primary response.
type EmbedVisit struct {
	ID         string    `json:"id"`
	Slug       string    `json:"slug"`
	IP         string    `json:"ip"`
	UserAgent  string    `json:"userAgent"`
	Referer    string    `json:"referer"`
	Path       string    `json:"path"`
	Query      string    `json:"query,omitempty"`
	AccessedAt time.Time `json:"accessedAt"`
}

// VerifyPasswordRequest is the body of POST /api/embed-auth/{slug} and
// POST /api/generated/verify.
type VerifyPasswordRequest struct {
	Password string `json:"password"`
}

// UpsertEmbedRequest is the body of POST /api/protected-embeds.
type UpsertEmbedRequest struct {
	CompanyName     string `json:"companyName,omitempty"`
	Slug            string `json:"slug,omitempty"`
	TargetURL       string `json:"targetUrl"`
	FrameEmbeddable bool   `json:"frameEmbeddable,omitempty"`
}
