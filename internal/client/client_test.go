package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dropDatabas3/consentgate/internal/authz"
	"github.com/dropDatabas3/consentgate/internal/domain/repository"
	dto "github.com/dropDatabas3/consentgate/internal/http/dto/consent"
)

func tuple() repository.ConsentTuple {
	return repository.ConsentTuple{
		UserID:             "u1",
		RequestingAppName:  "frontend-app",
		DestinationAppName: "banking-api",
		Capability:         "withdraw",
	}
}

func TestAuthorizeAllGranted(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/consent/check" {
			t.Errorf("path = %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		q := r.URL.Query()
		if q.Get("user_id") != "u1" || q.Get("capability") != "withdraw" {
			t.Errorf("query = %v", q)
		}
		_ = json.NewEncoder(w).Encode(dto.CheckResponse{
			Granted:    map[string]bool{"withdraw": true},
			AllGranted: true,
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	d, err := c.Authorize(context.Background(), tuple())
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if d.Result != authz.Allow {
		t.Fatalf("result = %s", d.Result)
	}
	// No bearer in context means no Authorization header.
	if gotAuth != "" {
		t.Fatalf("unexpected Authorization %q", gotAuth)
	}
}

func TestAuthorizeNotGranted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(dto.CheckResponse{
			Granted:    map[string]bool{"withdraw": false},
			AllGranted: false,
		})
	}))
	defer srv.Close()

	d, err := New(srv.URL).Authorize(context.Background(), tuple())
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if d.Result != authz.ConsentRequired {
		t.Fatalf("result = %s", d.Result)
	}
}

func TestAuthorizeMapsAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"code": "UNKNOWN_CAPABILITY"})
	}))
	defer srv.Close()

	if _, err := New(srv.URL).Authorize(context.Background(), tuple()); !errors.Is(err, repository.ErrUnknownCapability) {
		t.Fatalf("want ErrUnknownCapability, got %v", err)
	}
}

func TestAuthorizeServerDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := New(srv.URL).Authorize(context.Background(), tuple()); !errors.Is(err, repository.ErrUnavailable) {
		t.Fatalf("want ErrUnavailable, got %v", err)
	}
}

func TestIssue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/consent/challenge" || r.Method != http.MethodPost {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer user-token" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		var req dto.ChallengeRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Capability != "withdraw" || req.ActionURL != "http://banking.local/withdraw" {
			t.Errorf("req = %+v", req)
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(dto.ChallengeResponse{
			State:        "st-1",
			ConsentUIURL: "http://ui.local/consent?state=st-1",
			CallbackURL:  "http://api.local/api/v1/consent/callback",
		})
	}))
	defer srv.Close()

	ch, err := New(srv.URL).Issue(context.Background(), tuple(), "user-token", "http://banking.local/withdraw")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if ch.State != "st-1" || ch.ConsentURL == "" || ch.CallbackURL == "" {
		t.Fatalf("challenge = %+v", ch)
	}
	if ch.Tuple != tuple() {
		t.Fatalf("tuple = %+v", ch.Tuple)
	}
}
