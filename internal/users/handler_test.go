package users

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

type dupEmailRepo struct {
	stubRepo
}

func (r *dupEmailRepo) Create(context.Context, string, string, string) (*User, error) {
	return nil, ErrDuplicateEmail
}

func newAccountServer(t *testing.T, repo Repo) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	NewHandler(logger, NewService(repo)).MountRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestCreateAccountEndpoint(t *testing.T) {
	srv := newAccountServer(t, &stubRepo{})

	resp, err := http.Post(srv.URL+"/", "application/json",
		strings.NewReader(`{"email":"ops@example.com","name":"Ops","password":"s3cret-pass"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	var created userResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Email != "ops@example.com" || created.ID == 0 {
		t.Fatalf("created = %+v", created)
	}
}

func TestCreateAccountDuplicateEmailConflicts(t *testing.T) {
	srv := newAccountServer(t, &dupEmailRepo{})

	resp, err := http.Post(srv.URL+"/", "application/json",
		strings.NewReader(`{"email":"ops@example.com","name":"Ops","password":"s3cret-pass"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}
}

func TestGetAccountNotFound(t *testing.T) {
	srv := newAccountServer(t, &stubRepo{})

	resp, err := http.Get(srv.URL + "/99")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}
