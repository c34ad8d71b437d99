package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/refbase-dev/refbase-admin/internal/config"
	"github.com/refbase-dev/refbase-admin/internal/server"
	"github.com/refbase-dev/refbase-admin/internal/store"
	"github.com/refbase-dev/refbase-admin/internal/vault"
	"github.com/refbase-dev/refbase-admin/pkg/schema"
	"github.com/refbase-dev/refbase-admin/pkg/sdk"
)

func main() {
	configPath := flag.String("config", defaultConfigPath(), "path to the config file")
	importDir := flag.String("import", "", "import JSON snapshots from this directory before serving")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting refbase daemon",
		zap.Int("port", cfg.HTTPPort),
		zap.String("driver", cfg.DB.Driver))

	masterStore, cleanup, err := openStore(cfg, log)
	if err != nil {
		log.Fatal("store init failed", zap.Error(err))
	}

	if *importDir != "" {
		if err := runImport(masterStore, *importDir); err != nil {
			log.Fatal("import failed", zap.Error(err), zap.String("dir", *importDir))
		}
		log.Info("import complete", zap.String("dir", *importDir))
	}

	h := &server.Handler{Store: masterStore, Catalog: schema.DefaultCatalog(), Token: cfg.AuthToken, Log: log}
	router := server.NewRouter(h)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		if cfg.TLS {
			log.Info("generating self-signed certificate for internal TLS")
			cert, err := vault.GenerateSelfSignedCert()
			if err != nil {
				errCh <- err
				return
			}
			srv.TLSConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
			errCh <- srv.ListenAndServeTLS("", "")
			return
		}
		errCh <- srv.ListenAndServe()
	}()
	log.Info("listening", zap.String("addr", srv.Addr), zap.Bool("tls", cfg.TLS))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("shutdown incomplete", zap.Error(err))
	}
	cleanup()
	log.Info("exiting")
}

// openStore builds the configured engine with the default catalog
// registered. The cleanup drains pending writes.
func openStore(cfg config.Config, log *zap.Logger) (sdk.MasterStore, func(), error) {
	switch cfg.DB.Driver {
	case "sqlite":
		s, err := store.OpenSQL(cfg.DB.Path)
		if err != nil {
			return nil, nil, err
		}
		s.Register(schema.DefaultCatalog()...)
		if cfg.AuthToken != "" {
			s.SetActor(cfg.AuthToken, "admin")
		}
		return s, func() { s.Close() }, nil
	default:
		p, err := store.NewPersistence(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		snaps, err := p.LoadAll()
		if err != nil {
			log.Warn("could not load existing data", zap.Error(err))
		}
		audit, err := p.LoadAudit()
		if err != nil {
			log.Warn("could not load audit trail", zap.Error(err))
		}
		m := store.NewMemStore(p)
		m.Register(schema.DefaultCatalog()...)
		m.Restore(snaps, audit)
		if cfg.AuthToken != "" {
			m.SetActor(cfg.AuthToken, "admin")
		}
		log.Info("engine started", zap.Int("tables", len(snaps)))
		return m, func() { m.Wait() }, nil
	}
}

// runImport seeds the active store from a directory of JSON snapshots,
// typically a previous memory-driver data dir.
func runImport(dst sdk.MasterStore, dir string) error {
	importer, ok := dst.(store.BulkImporter)
	if !ok {
		return fmt.Errorf("store does not support bulk import")
	}

	p, err := store.NewPersistence(dir)
	if err != nil {
		return err
	}
	snaps, err := p.LoadAll()
	if err != nil {
		return err
	}
	src := store.NewMemStore(nil)
	src.Register(schema.DefaultCatalog()...)
	src.Restore(snaps, nil)

	var tables []string
	for _, def := range schema.DefaultCatalog() {
		tables = append(tables, def.Name)
	}
	return store.Copy(src, importer, tables)
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "refbase.yaml"
	}
	return home + "/.refbase/config.yaml"
}
