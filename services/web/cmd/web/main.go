package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"forbias/internal/browsertoken"
	"forbias/internal/util"
	"forbias/pkg/catalog"
	"forbias/pkg/events"
	"forbias/pkg/storage"
	"forbias/pkg/store"
	"forbias/services/web/internal/app"
	"forbias/services/web/internal/config"
	"forbias/services/web/internal/server"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.InitLogger(cfg.LogLevel)

	medium, err := storage.Open(cfg.StorageOptions())
	if err != nil {
		log.Fatalf("failed to open %s storage: %v", cfg.Storage.Driver, err)
	}
	defer medium.Close()

	var searcher catalog.Searcher
	if cfg.SpotifyEnabled() {
		spotify, err := catalog.NewSpotifyClient(catalog.SpotifyOptions{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			TokenURL:     cfg.Spotify.TokenURL,
			APIBaseURL:   cfg.Spotify.APIBaseURL,
			Market:       cfg.Spotify.Market,
			Limit:        cfg.Spotify.Limit,
		})
		if err != nil {
			log.Fatalf("failed to init spotify client: %v", err)
		}
		searcher = spotify
	} else {
		logger.Warn("spotify credentials missing; track search disabled")
	}

	publisher, err := events.Open(events.Options{
		Driver:        cfg.Events.Driver,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		Stream:        cfg.Events.Stream,
		AMQPURL:       cfg.Events.AMQPURL,
		Exchange:      cfg.Events.Exchange,
	})
	if err != nil {
		log.Fatalf("failed to init %s events: %v", cfg.Events.Driver, err)
	}

	appCore, err := app.New(app.Config{
		Store:   store.New(medium, store.WithLogger(logger)),
		Catalog: searcher,
		Events:  publisher,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}
	defer appCore.Close()

	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		log.Fatalf("invalid trustedProxyCidrs: %v", err)
	}
	browsers, err := browsertoken.NewIssuer(browsertoken.Options{
		Secret: cfg.BrowserCookieSecret,
		TTL:    time.Duration(cfg.BrowserCookieMaxAgeDays) * 24 * time.Hour,
	})
	if err != nil {
		log.Fatalf("failed to init browser tokens: %v", err)
	}
	httpServer, err := server.New(server.Config{
		App:                      appCore,
		Browsers:                 browsers,
		BrowserCookieName:        cfg.BrowserCookieName,
		BrowserCookieSecure:      cfg.BrowserCookieSecure,
		PublicBaseURL:            cfg.PublicBaseURL,
		TrustedProxies:           trusted,
		RedisAddr:                cfg.RedisAddr,
		RedisPassword:            cfg.RedisPassword,
		SearchRateLimitPerMinute: cfg.SearchRateLimitPerMinute,
		LikeRateLimitPerMinute:   cfg.LikeRateLimitPerMinute,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}
	defer httpServer.Close()

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           httpServer.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", "addr", addr, "storage", cfg.Storage.Driver, "events", cfg.Events.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Error("server error", "err", err)
	}
	logger.Info("server stopped")
}
