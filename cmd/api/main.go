package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"portal.koudaisai.jp/internal/account"
	"portal.koudaisai.jp/internal/authz"
	"portal.koudaisai.jp/internal/config"
	"portal.koudaisai.jp/internal/httpapi"
	"portal.koudaisai.jp/internal/idp"
	"portal.koudaisai.jp/internal/obs"
	"portal.koudaisai.jp/internal/sha"
	"portal.koudaisai.jp/internal/store/pg"
	"portal.koudaisai.jp/internal/token"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	store, err := pg.Open(cfg.DSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	privatePEM, err := os.ReadFile(cfg.Auth.PrivateKeyPath)
	if err != nil {
		log.Fatalf("read private key: %v", err)
	}
	publicPEM, err := os.ReadFile(cfg.Auth.PublicKeyPath)
	if err != nil {
		log.Fatalf("read public key: %v", err)
	}

	tokens, err := token.NewService(privatePEM, publicPEM, store,
		token.WithIssuer(cfg.Auth.Issuer),
		token.WithAccessTTL(cfg.Auth.AccessTTL),
		token.WithRefreshTTL(cfg.Auth.RefreshTTL),
	)
	if err != nil {
		log.Fatalf("token service: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider, err := idp.Discover(ctx, idp.Config{
		IssuerURL:    cfg.OIDC.IssuerURL,
		ClientID:     cfg.OIDC.ClientID,
		ClientSecret: cfg.OIDC.ClientSecret,
		RedirectURL:  cfg.OIDC.RedirectURL,
	})
	if err != nil {
		log.Fatalf("oidc discovery: %v", err)
	}

	sessions := account.NewSessionStore(cfg.Auth.SessionTTL)
	sessions.StartSweeper(ctx, time.Minute)

	hasher := sha.NewHasher(cfg.Auth.StretchCost)
	accounts := account.NewService(store, tokens, hasher, cfg.Auth.ActivationSalt, sessions, provider)
	policy := authz.New(store, store)

	api := httpapi.New(httpapi.Deps{
		Accounts:       accounts,
		Tokens:         tokens,
		Provider:       provider,
		Policy:         policy,
		Users:          store,
		Exhibitors:     store,
		Forms:          store,
		Responses:      store,
		Probe:          httpapi.ReadyProbe{DB: store.DB()},
		Version:        version,
		AuthRateBurst:  cfg.RateBurst,
		AuthRatePerSec: cfg.RatePerSec,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting portal-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	log.Println("Stopped")
}
