package market

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"flip-earn/internal/auth"
	"flip-earn/internal/imagestore"
	"flip-earn/internal/repo"
	"flip-earn/migrations"
)

type fakeUploader struct {
	fail     bool
	uploaded int
}

func (f *fakeUploader) UploadAll(ctx context.Context, files []imagestore.File) ([]imagestore.Uploaded, error) {
	if f.fail {
		return nil, fmt.Errorf("upload rejected")
	}
	out := make([]imagestore.Uploaded, 0, len(files))
	for _, file := range files {
		f.uploaded++
		out = append(out, imagestore.Uploaded{
			URL:    "https://img.test/" + file.Name,
			FileID: file.Name,
		})
	}
	return out, nil
}

func newTestService(t *testing.T) (*Service, repo.Store, *fakeUploader) {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := repo.NewSQLite(ctx, ":memory:", logger)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(store.Close)

	if err := store.RunMigrations(ctx, migrations.Files); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	uploader := &fakeUploader{}
	svc := New(store, uploader, nil, nil, logger, Config{})
	return svc, store, uploader
}

func seedUser(t *testing.T, store repo.Store, id string) auth.Identity {
	t.Helper()
	_, err := store.UpsertUser(context.Background(), repo.UserProfile{
		ID:    id,
		Email: id + "@example.com",
		Name:  id,
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
	return auth.Identity{UserID: id, Plan: auth.PlanFree, Role: auth.RoleUser}
}

func seedListing(t *testing.T, svc *Service, actor auth.Identity, price int64) *repo.Listing {
	t.Helper()
	listing, err := svc.CreateListing(context.Background(), actor, ListingInput{
		Title:    "Travel IG",
		Platform: "Instagram",
		Niche:    "Travel",
		Price:    price,
	}, nil)
	if err != nil {
		t.Fatalf("seed listing: %v", err)
	}
	return listing
}

func wantCode(t *testing.T, err error, code Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", code)
	}
	if got := CodeOf(err); got != code {
		t.Fatalf("expected code %s, got %s (%v)", code, got, err)
	}
}
