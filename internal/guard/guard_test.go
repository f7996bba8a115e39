package guard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dropDatabas3/consentgate/internal/authz"
	"github.com/dropDatabas3/consentgate/internal/cache"
	"github.com/dropDatabas3/consentgate/internal/domain/repository"
	"github.com/dropDatabas3/consentgate/internal/handshake"
	"github.com/dropDatabas3/consentgate/internal/registry"
	tokens "github.com/dropDatabas3/consentgate/internal/security/token"
	"github.com/dropDatabas3/consentgate/internal/store/memory"
)

type testEnv struct {
	guard *Guard
	store *memory.Store
	mint  func(sub string) string
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	st := memory.New()
	if _, err := st.Create(ctx, "frontend-app"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	banking, err := st.Create(ctx, "banking-api")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := st.AddCapability(ctx, banking.ID, "withdraw"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	pub, priv, err := tokens.GenerateKeypair()
	if err != nil {
		t.Fatalf("keypair: %v", err)
	}

	reg := registry.New(st)
	hs := handshake.New(handshake.Config{
		TTL:          time.Minute,
		ConsentUIURL: "http://ui.local/consent",
		CallbackURL:  "http://api.local/api/v1/consent/callback",
	}, cache.NewMemory("test"), st, nil)

	g := &Guard{
		Verifier:       tokens.NewEdDSAVerifier(pub, "test-issuer"),
		Engine:         authz.NewStoreEngine(reg, st),
		Issuer:         hs,
		RequestingApp:  "frontend-app",
		DestinationApp: "banking-api",
		ActionBaseURL:  "http://banking.local",
	}

	return &testEnv{
		guard: g,
		store: st,
		mint: func(sub string) string {
			tok, err := tokens.MintEdDSA(priv, "test-issuer", sub, time.Hour, nil)
			if err != nil {
				t.Fatalf("mint: %v", err)
			}
			return tok
		},
	}
}

func doProtected(env *testEnv, capability, bearer string) *httptest.ResponseRecorder {
	var handled http.HandlerFunc = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"action":"done","user":"` + ClaimsFrom(r.Context()).Subject + `"}`))
	}

	req := httptest.NewRequest(http.MethodPost, "/withdraw", nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rr := httptest.NewRecorder()
	env.guard.Protect(capability, handled)(rr, req)
	return rr
}

func TestProtectMissingToken(t *testing.T) {
	env := newEnv(t)

	rr := doProtected(env, "withdraw", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
	if rr.Header().Get("WWW-Authenticate") == "" {
		t.Fatal("missing WWW-Authenticate header")
	}
}

func TestProtectBadToken(t *testing.T) {
	env := newEnv(t)

	rr := doProtected(env, "withdraw", "not-a-jwt")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestProtectConsentRequired(t *testing.T) {
	env := newEnv(t)

	rr := doProtected(env, "withdraw", env.mint("u1"))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}

	var body struct {
		ErrorCode     string `json:"error_code"`
		ConsentParams struct {
			RequestingApp  string `json:"requesting_app"`
			DestinationApp string `json:"destination_app"`
			Capability     string `json:"capability"`
			State          string `json:"state"`
			CallbackURL    string `json:"callback_url"`
		} `json:"consent_params"`
		ConsentUIURL string `json:"consent_ui_url"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode 403 body: %v", err)
	}
	if body.ErrorCode != "consent_required" {
		t.Fatalf("error_code = %q", body.ErrorCode)
	}
	if body.ConsentParams.RequestingApp != "frontend-app" ||
		body.ConsentParams.DestinationApp != "banking-api" ||
		body.ConsentParams.Capability != "withdraw" {
		t.Fatalf("consent_params = %+v", body.ConsentParams)
	}
	if body.ConsentParams.State == "" || body.ConsentParams.CallbackURL == "" || body.ConsentUIURL == "" {
		t.Fatalf("incomplete challenge: %+v", body)
	}
}

func TestProtectAllowAfterGrant(t *testing.T) {
	env := newEnv(t)

	if _, err := env.store.Grant(context.Background(), repository.ConsentTuple{
		UserID:             "u1",
		RequestingAppName:  "frontend-app",
		DestinationAppName: "banking-api",
		Capability:         "withdraw",
	}); err != nil {
		t.Fatalf("grant: %v", err)
	}

	rr := doProtected(env, "withdraw", env.mint("u1"))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rr.Code, rr.Body.String())
	}

	// The grant belongs to u1 only.
	rr = doProtected(env, "withdraw", env.mint("u2"))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("u2 status = %d, want 403", rr.Code)
	}
}

func TestProtectUnknownCapability(t *testing.T) {
	env := newEnv(t)

	rr := doProtected(env, "transfer", env.mint("u1"))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}

	var body struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Code != "UNKNOWN_CAPABILITY" {
		t.Fatalf("code = %q, want UNKNOWN_CAPABILITY", body.Code)
	}
}

func TestChallengeStateIsSingleUse(t *testing.T) {
	env := newEnv(t)

	rr := doProtected(env, "withdraw", env.mint("u1"))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}

	var body struct {
		ConsentParams struct {
			State string `json:"state"`
		} `json:"consent_params"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}

	hs := env.guard.Issuer.(*handshake.Service)
	ctx := context.Background()
	if _, err := hs.Complete(ctx, body.ConsentParams.State, true, ""); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := hs.Complete(ctx, body.ConsentParams.State, true, ""); err == nil {
		t.Fatal("replayed state must fail")
	}

	// After consent the same request goes through.
	rr = doProtected(env, "withdraw", env.mint("u1"))
	if rr.Code != http.StatusOK {
		t.Fatalf("post-consent status = %d, want 200", rr.Code)
	}
}
