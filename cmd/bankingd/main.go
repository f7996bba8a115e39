// bankingd is a demo resource server. It accepts on-behalf-of calls from a
// frontend and defers every capability decision to the consent service: a
// missing grant answers 403 consent_required with redirect parameters, and
// after the user consents the blocked call is retried automatically.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dropDatabas3/consentgate/internal/client"
	"github.com/dropDatabas3/consentgate/internal/guard"
	"github.com/dropDatabas3/consentgate/internal/http/helpers"
	"github.com/dropDatabas3/consentgate/internal/observability/logger"
	tokens "github.com/dropDatabas3/consentgate/internal/security/token"
)

type account struct {
	mu       sync.Mutex
	balances map[string]int64
}

func (a *account) apply(user string, delta int64) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.balances[user] += delta
	return a.balances[user]
}

func (a *account) balance(user string) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balances[user]
}

func main() {
	_ = godotenv.Load()

	var (
		addr       = envOr("BANKINGD_ADDR", ":8087")
		consentURL = envOr("BANKINGD_CONSENT_URL", "http://localhost:8086")
		publicKey  = envOr("BANKINGD_AUTH_PUBLIC_KEY", "")
		issuer     = envOr("BANKINGD_AUTH_ISSUER", "")
		baseURL    = envOr("BANKINGD_BASE_URL", "http://localhost:8087")
	)

	logger.Init(logger.Config{
		Env:         envOr("APP_ENV", "dev"),
		Level:       envOr("LOG_LEVEL", "info"),
		ServiceName: "bankingd",
	})
	defer logger.Sync()
	log := logger.Named("bankingd")

	if publicKey == "" {
		log.Fatal("BANKINGD_AUTH_PUBLIC_KEY is required")
	}
	pub, err := tokens.ParsePublicKey(publicKey)
	if err != nil {
		log.Fatal("bad public key", logger.Err(err))
	}

	consent := client.New(consentURL)
	g := &guard.Guard{
		Verifier:       tokens.NewEdDSAVerifier(pub, issuer),
		Engine:         consent,
		Issuer:         consent,
		RequestingApp:  envOr("BANKINGD_REQUESTING_APP", "frontend-app"),
		DestinationApp: envOr("BANKINGD_DESTINATION_APP", "banking-api"),
		ActionBaseURL:  baseURL,
	}

	acct := &account{balances: make(map[string]int64)}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /withdraw", g.Protect("withdraw", func(w http.ResponseWriter, r *http.Request) {
		user := guard.ClaimsFrom(r.Context()).Subject
		bal := acct.apply(user, -100)
		helpers.WriteJSON(w, http.StatusOK, map[string]any{
			"action":  "withdraw",
			"user":    user,
			"balance": bal,
		})
	}))
	mux.HandleFunc("POST /deposit", g.Protect("deposit", func(w http.ResponseWriter, r *http.Request) {
		user := guard.ClaimsFrom(r.Context()).Subject
		bal := acct.apply(user, 100)
		helpers.WriteJSON(w, http.StatusOK, map[string]any{
			"action":  "deposit",
			"user":    user,
			"balance": bal,
		})
	}))
	mux.HandleFunc("GET /balance", g.Protect("balance:read", func(w http.ResponseWriter, r *http.Request) {
		user := guard.ClaimsFrom(r.Context()).Subject
		helpers.WriteJSON(w, http.StatusOK, map[string]any{
			"user":    user,
			"balance": acct.balance(user),
		})
	}))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		helpers.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		log.Info("listening", logger.String("addr", addr), logger.String("consent_url", consentURL))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		log.Fatal("server failed", logger.Err(err))
	case <-ctx.Done():
	}

	shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shCtx)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
