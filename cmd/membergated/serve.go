package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/covercompare/membergate/internal/api"
	"github.com/covercompare/membergate/internal/auth"
	"github.com/covercompare/membergate/internal/config"
	"github.com/covercompare/membergate/internal/gateway"
	"github.com/covercompare/membergate/internal/logging"
	"github.com/covercompare/membergate/internal/server"
	"github.com/covercompare/membergate/internal/vault"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type overrides struct {
	port    int
	store   string
	dataDir string
}

var serveFlags = &overrides{}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context(), serveFlags)
	},
}

func addServeFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().IntVar(&serveFlags.port, "port", 0, "listen port (overrides MEMBERGATE_PORT)")
	cmd.PersistentFlags().StringVar(&serveFlags.store, "store", "", "memory|file|postgres|sqlite (overrides MEMBERGATE_STORE)")
	cmd.PersistentFlags().StringVar(&serveFlags.dataDir, "data-dir", "", "profile directory for the file store (overrides MEMBERGATE_DATA_DIR)")
}

// loadConfig reads the environment, applies flag overrides and initializes logging.
func loadConfig(o *overrides) (config.Config, error) {
	logging.Init(logging.Config{Format: "json", Level: "info", Component: "membergated"})

	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if o.port != 0 {
		cfg.HTTP.Port = o.port
	}
	if o.store != "" {
		cfg.Store.Backend = o.store
	}
	if o.dataDir != "" {
		cfg.Store.DataDir = o.dataDir
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}

	logging.Init(logging.Config{
		Format:    cfg.Logging.Format,
		Level:     cfg.Logging.Level,
		Component: "membergated",
	})
	return cfg, nil
}

func runServe(parent context.Context, o *overrides) error {
	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("MEMBERGATE_JWT_SECRET is required to serve")
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBackend(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer b.Close()

	authn, err := auth.NewJWT([]byte(cfg.Auth.JWTSecret), cfg.Auth.JWTIssuer)
	if err != nil {
		return err
	}

	h := &api.Handler{
		Gateway: gateway.New(gateway.Options{
			Store:    b.store,
			Elevated: b.elevated,
		}),
		Production: cfg.IsProduction(),
	}
	srv := server.New(cfg.HTTP, h, authn, b.health)

	if cfg.HTTP.TLS {
		log.Info().Msg("Generating self-signed certificate for TLS")
		cert, err := vault.GenerateSelfSignedCert(cfg.HTTP.Host)
		if err != nil {
			return fmt.Errorf("generate TLS certificate: %w", err)
		}
		srv.SetCertificate(cert)
	}

	log.Info().
		Str("version", Version).
		Str("store", cfg.Store.Backend).
		Bool("elevated_store", b.elevated != nil).
		Str("env", cfg.Environment).
		Msg("Starting membergated")

	if err := srv.ListenAndServe(ctx); err != nil {
		return err
	}
	log.Info().Msg("Shutdown complete")
	return nil
}
