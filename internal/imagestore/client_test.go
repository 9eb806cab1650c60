package imagestore

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestUploadAll(t *testing.T) {
	var mu sync.Mutex
	var uploads []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/files/upload" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		name := r.FormValue("fileName")
		mu.Lock()
		uploads = append(uploads, name)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"url":"https://cdn.test/` + name + `","fileId":"` + name + `"}`))
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL, APIKey: "key"}, testLogger(), nil)

	uploaded, err := client.UploadAll(context.Background(), []File{
		{Name: "a.png", Data: []byte("a")},
		{Name: "b.png", Data: []byte("b")},
	})
	if err != nil {
		t.Fatalf("upload all: %v", err)
	}
	if len(uploaded) != 2 {
		t.Fatalf("expected 2 results, got %d", len(uploaded))
	}
	if !strings.HasSuffix(uploaded[0].URL, "a.png") || !strings.HasSuffix(uploaded[1].URL, "b.png") {
		t.Fatalf("urls out of order: %+v", uploaded)
	}
	if len(uploads) != 2 {
		t.Fatalf("expected 2 server uploads, got %d", len(uploads))
	}
}

func TestUploadAllRollsBackOnFailure(t *testing.T) {
	var mu sync.Mutex
	var deleted []string
	count := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/files/upload":
			mu.Lock()
			count++
			n := count
			mu.Unlock()
			if n > 1 {
				http.Error(w, "quota exceeded", http.StatusForbidden)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"url":"https://cdn.test/first","fileId":"file-1"}`))
		case r.Method == http.MethodDelete:
			mu.Lock()
			deleted = append(deleted, strings.TrimPrefix(r.URL.Path, "/api/v1/files/"))
			mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL, APIKey: "key"}, testLogger(), nil)

	_, err := client.UploadAll(context.Background(), []File{
		{Name: "a.png", Data: []byte("a")},
		{Name: "b.png", Data: []byte("b")},
	})
	if err == nil {
		t.Fatal("expected upload failure")
	}
	if len(deleted) != 1 || deleted[0] != "file-1" {
		t.Fatalf("expected the first upload rolled back, deleted=%v", deleted)
	}
}

func TestDeleteToleratesNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL, APIKey: "key"}, testLogger(), nil)
	if err := client.Delete(context.Background(), "gone"); err != nil {
		t.Fatalf("delete of missing file should succeed: %v", err)
	}
}

func TestUploadRejectsMissingURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"fileId":"x"}`))
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL, APIKey: "key"}, testLogger(), nil)
	if _, err := client.Upload(context.Background(), File{Name: "a.png", Data: []byte("a")}); err == nil {
		t.Fatal("expected error for response without url")
	}
}
