package registry

import (
	"context"
	"testing"
	"time"

	"sajtstudio-gateway/auth"
	"sajtstudio-gateway/cache"
	"sajtstudio-gateway/config"
	"sajtstudio-gateway/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func setupStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	c, err := cache.New(config.CacheConfig{MaxSizeMB: 8, TTLSeconds: 60, CounterSize: 1000})
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	t.Cleanup(c.Close)

	return New(rdb, c), mr
}

func TestPreviewRoundTrip(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	p := model.Preview{
		Slug:        "demo-x",
		CompanyName: "Demo X AB",
		Domain:      "demo-x.example.net",
	}
	if err := store.UpsertPreview(ctx, p); err != nil {
		t.Fatalf("UpsertPreview() error = %v", err)
	}

	got, err := store.GetPreview(ctx, "demo-x")
	if err != nil {
		t.Fatalf("GetPreview() error = %v", err)
	}
	if got.CompanyName != "Demo X AB" || got.Domain != "demo-x.example.net" {
		t.Errorf("GetPreview() = %+v", got)
	}
	if got.CreatedAt.IsZero() || got.LastAccessed.IsZero() {
		t.Error("timestamps not populated on upsert")
	}
}

func TestGetPreview_NotFound(t *testing.T) {
	store, _ := setupStore(t)

	if _, err := store.GetPreview(context.Background(), "nope"); err != ErrNotFound {
		t.Errorf("GetPreview(missing) error = %v, want ErrNotFound", err)
	}
}

func TestProtectedEmbedRoundTrip(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	e := model.ProtectedEmbed{
		Slug:            "kund-abc",
		Title:           "Kund ABC",
		TargetURL:       "https://kund-abc.example.net",
		FrameEmbeddable: true,
	}
	if err := store.UpsertProtectedEmbed(ctx, e, "hemligt123"); err != nil {
		t.Fatalf("UpsertProtectedEmbed() error = %v", err)
	}

	got, err := store.GetProtectedEmbed(ctx, "kund-abc")
	if err != nil {
		t.Fatalf("GetProtectedEmbed() error = %v", err)
	}
	if got.PasswordHash == "" || got.PasswordSalt == "" {
		t.Error("password hash or salt missing after upsert")
	}
	if got.PasswordHash == "hemligt123" {
		t.Error("password stored in the clear")
	}
	if !got.FrameEmbeddable {
		t.Error("FrameEmbeddable not persisted")
	}
	if !auth.CheckPassword("hemligt123", got.PasswordSalt, got.PasswordHash) {
		t.Error("stored hash does not verify against the original password")
	}
}

func TestVerifyPassword(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	e := model.ProtectedEmbed{Slug: "kund-abc", TargetURL: "https://kund-abc.example.net"}
	if err := store.UpsertProtectedEmbed(ctx, e, "correct-pass"); err != nil {
		t.Fatalf("UpsertProtectedEmbed() error = %v", err)
	}

	if !store.VerifyPassword(ctx, "kund-abc", "correct-pass") {
		t.Error("VerifyPassword(correct) = false")
	}
	if store.VerifyPassword(ctx, "kund-abc", "wrong-pass") {
		t.Error("VerifyPassword(wrong) = true")
	}
	if store.VerifyPassword(ctx, "no-such-slug", "correct-pass") {
		t.Error("VerifyPassword(unknown slug) = true")
	}
}

func TestUpsertReplacesPassword(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	e := model.ProtectedEmbed{Slug: "kund-abc", TargetURL: "https://kund-abc.example.net"}
	if err := store.UpsertProtectedEmbed(ctx, e, "old-pass"); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := store.UpsertProtectedEmbed(ctx, e, "new-pass"); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	if store.VerifyPassword(ctx, "kund-abc", "old-pass") {
		t.Error("old password still accepted after re-registration")
	}
	if !store.VerifyPassword(ctx, "kund-abc", "new-pass") {
		t.Error("new password rejected after re-registration")
	}
}

func TestDeleteProtectedEmbed(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	e := model.ProtectedEmbed{Slug: "kund-abc", TargetURL: "https://kund-abc.example.net"}
	if err := store.UpsertProtectedEmbed(ctx, e, "pass"); err != nil {
		t.Fatalf("UpsertProtectedEmbed() error = %v", err)
	}

	deleted, err := store.DeleteProtectedEmbed(ctx, "kund-abc")
	if err != nil || !deleted {
		t.Fatalf("DeleteProtectedEmbed() = %v, %v", deleted, err)
	}
	if _, err := store.GetProtectedEmbed(ctx, "kund-abc"); err != ErrNotFound {
		t.Errorf("GetProtectedEmbed(deleted) error = %v, want ErrNotFound", err)
	}

	deleted, err = store.DeleteProtectedEmbed(ctx, "kund-abc")
	if err != nil {
		t.Fatalf("DeleteProtectedEmbed(again) error = %v", err)
	}
	if deleted {
		t.Error("DeleteProtectedEmbed(missing) = true")
	}
}

func TestNamespacesAreDistinct(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	if err := store.UpsertPreview(ctx, model.Preview{Slug: "shared"}); err != nil {
		t.Fatalf("UpsertPreview() error = %v", err)
	}

	if _, err := store.GetProtectedEmbed(ctx, "shared"); err != ErrNotFound {
		t.Errorf("preview entry visible in the protected-embed namespace: %v", err)
	}
}

func TestTouchProtectedEmbed(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	e := model.ProtectedEmbed{
		Slug:         "kund-abc",
		TargetURL:    "https://kund-abc.example.net",
		CreatedAt:    time.Now().Add(-48 * time.Hour),
		LastAccessed: time.Now().Add(-48 * time.Hour),
	}
	if err := store.UpsertProtectedEmbed(ctx, e, "pass"); err != nil {
		t.Fatalf("UpsertProtectedEmbed() error = %v", err)
	}

	store.TouchProtectedEmbed(ctx, "kund-abc")

	got, err := store.GetProtectedEmbed(ctx, "kund-abc")
	if err != nil {
		t.Fatalf("GetProtectedEmbed() error = %v", err)
	}
	if time.Since(got.LastAccessed) > time.Minute {
		t.Errorf("LastAccessed = %v, not touched", got.LastAccessed)
	}
	if time.Since(got.CreatedAt) < 47*time.Hour {
		t.Errorf("CreatedAt = %v, must not change on touch", got.CreatedAt)
	}
}

func TestLogVisitAndQuery(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		store.LogVisit(ctx, model.EmbedVisit{
			Slug:      "kund-abc",
			IP:        "203.0.113.7",
			UserAgent: "test-agent",
			Path:      "/",
		})
	}
	store.LogVisit(ctx, model.EmbedVisit{Slug: "kund-xyz", Path: "/om-oss"})

	perSlug, err := store.Visits(ctx, "kund-abc", 10)
	if err != nil {
		t.Fatalf("Visits(slug) error = %v", err)
	}
	if len(perSlug) != 3 {
		t.Errorf("Visits(kund-abc) returned %d records, want 3", len(perSlug))
	}
	for _, v := range perSlug {
		if v.ID == "" {
			t.Error("visit record missing generated ID")
		}
		if v.AccessedAt.IsZero() {
			t.Error("visit record missing timestamp")
		}
	}

	all, err := store.Visits(ctx, "", 10)
	if err != nil {
		t.Fatalf("Visits(global) error = %v", err)
	}
	if len(all) != 4 {
		t.Errorf("global log has %d records, want 4", len(all))
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Total != 4 {
		t.Errorf("Stats().Total = %d, want 4", stats.Total)
	}
	if stats.BySlugSeen["kund-abc"] != 3 || stats.BySlugSeen["kund-xyz"] != 1 {
		t.Errorf("Stats().BySlugSeen = %v", stats.BySlugSeen)
	}
}

func TestVisitsLimit(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		store.LogVisit(ctx, model.EmbedVisit{Slug: "kund-abc", Path: "/"})
	}

	visits, err := store.Visits(ctx, "kund-abc", 5)
	if err != nil {
		t.Fatalf("Visits() error = %v", err)
	}
	if len(visits) != 5 {
		t.Errorf("Visits(limit=5) returned %d records", len(visits))
	}
}
