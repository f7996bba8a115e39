package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/consentgate/internal/authz"
	"github.com/dropDatabas3/consentgate/internal/cache"
	"github.com/dropDatabas3/consentgate/internal/config"
	"github.com/dropDatabas3/consentgate/internal/handshake"
	callbackctrl "github.com/dropDatabas3/consentgate/internal/http/controllers/callback"
	consentctrl "github.com/dropDatabas3/consentgate/internal/http/controllers/consent"
	healthctrl "github.com/dropDatabas3/consentgate/internal/http/controllers/health"
	registryctrl "github.com/dropDatabas3/consentgate/internal/http/controllers/registry"
	"github.com/dropDatabas3/consentgate/internal/http/router"
	consentsvc "github.com/dropDatabas3/consentgate/internal/http/services/consent"
	"github.com/dropDatabas3/consentgate/internal/metrics"
	"github.com/dropDatabas3/consentgate/internal/observability/logger"
	"github.com/dropDatabas3/consentgate/internal/registry"
	tokens "github.com/dropDatabas3/consentgate/internal/security/token"
	"github.com/dropDatabas3/consentgate/internal/store"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the consent service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       envOr("LOG_LEVEL", "info"),
		ServiceName: "consentgate",
		Version:     version,
	})
	defer logger.Sync()
	log := logger.Named("serve")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, err := store.New(ctx, store.Options{
		Driver:          cfg.Store.Driver,
		DSN:             cfg.Store.DSN,
		MaxConns:        int32(cfg.Store.MaxConns),
		ConnMaxLifetime: config.Duration(cfg.Store.ConnMaxLifetime, 30*time.Minute),
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer repos.Close()

	cacheClient, err := cache.New(cache.Config{
		Driver:   cfg.Cache.Kind,
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
		Prefix:   "consentgate",
	})
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer cacheClient.Close()

	verifier, err := buildVerifier(cfg)
	if err != nil {
		return err
	}

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	reg := registry.New(repos.Applications)

	var retry handshake.Dispatcher
	if cfg.Consent.RetryEnabled {
		retry = handshake.NewHTTPDispatcher(15 * time.Second)
	}
	hs := handshake.New(handshake.Config{
		TTL:          cfg.ChallengeTTL(),
		ConsentUIURL: cfg.Consent.ConsentUIURL,
		CallbackURL:  cfg.Consent.CallbackURL,
	}, cacheClient, repos.Consents, retry)

	engine := authz.NewStoreEngine(reg, repos.Consents)

	consentService := consentsvc.New(consentsvc.Deps{
		Consents: repos.Consents,
		Registry: reg,
		Engine:   engine,
	})

	handler := router.New(router.Deps{
		Verifier: verifier,
		Consent:  consentctrl.NewController(consentService),
		Callback: callbackctrl.NewController(hs, reg, cfg.Consent.RequireCallbackAuth),
		Registry: registryctrl.NewController(reg),
		Health: healthctrl.NewController(version, map[string]healthctrl.Pinger{
			"store": repos,
			"cache": pingerFunc(cacheClient.Ping),
		}),
		AllowedOrigins: cfg.Server.CORSAllowedOrigins,
		ExposeMetrics:  cfg.Server.ExposeMetrics,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  config.Duration(cfg.Server.ReadTimeout, 10*time.Second),
		WriteTimeout: config.Duration(cfg.Server.WriteTimeout, 30*time.Second),
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("listening", logger.String("addr", cfg.Server.Addr), logger.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shCtx, cancel := context.WithTimeout(context.Background(), config.Duration(cfg.Server.ShutdownTimeout, 10*time.Second))
	defer cancel()
	return srv.Shutdown(shCtx)
}

// buildVerifier returns the configured Ed25519 verifier. In dev without a
// key a throwaway keypair is generated and printed so local tokens can be
// minted against it.
func buildVerifier(cfg *config.Config) (tokens.Verifier, error) {
	if cfg.Auth.PublicKey != "" {
		pub, err := tokens.ParsePublicKey(cfg.Auth.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("auth.public_key: %w", err)
		}
		return tokens.NewEdDSAVerifier(pub, cfg.Auth.Issuer), nil
	}

	pub, priv, err := tokens.GenerateKeypair()
	if err != nil {
		return nil, err
	}
	logger.L().Warn("no auth.public_key configured, generated a dev keypair",
		logger.String("public_key", tokens.EncodeKey(pub)),
		logger.String("private_key", tokens.EncodeKey(priv.Seed())),
	)
	return tokens.NewEdDSAVerifier(pub, cfg.Auth.Issuer), nil
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }
