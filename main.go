package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"finapi/pkg/analytics"
	"finapi/pkg/auth"
	"finapi/pkg/bootstrap"
	"finapi/pkg/config"
	"finapi/pkg/events"
	"finapi/pkg/goals"
	"finapi/pkg/ledger"
	"finapi/pkg/logx"
	"finapi/pkg/receipt"
	"finapi/pkg/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := bootstrap.Logger(cfg)

	// `finapi migrate` applies migrations and seeds categories, then exits.
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := bootstrap.Migrate(context.Background(), cfg); err != nil {
			log.Err(context.Background(), "migrate", err)
			os.Exit(1)
		}
		fmt.Println("migration and seeding completed")
		return
	}

	if err := run(cfg, log); err != nil {
		log.Err(context.Background(), "run server", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logx.Logger) error {
	if cfg.DevSecret {
		log.Warn("JWT_SECRET not set, using development secret")
	}
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := bootstrap.OpenStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	pub, closePub := bootstrap.Publisher(cfg, log)
	defer closePub()

	srv := newServer(st, pub, cfg, log)
	scanner := receipt.NewScanner(receipt.Tesseract{}, log)
	srv.receipts = receipt.NewService(st, scanner, cfg.UploadBase, log)

	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", httpSrv.Addr, "backend", cfg.DataBackend)
		errc <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// newServer wires the domain services over st. Receipts run without OCR
// until the caller installs a scanner.
func newServer(st store.Store, pub events.Publisher, cfg *config.Config, log *logx.Logger) *server {
	em := events.NewEmitter(pub, log)
	return &server{
		store:      st,
		auth:       auth.NewService(st, auth.NewIssuer(cfg.JWTSecret, cfg.JWTTTL), cfg.RefreshTTL, log),
		ledger:     ledger.NewService(st, em, log),
		goals:      goals.NewService(st, em, log),
		analytics:  analytics.NewService(st, log),
		receipts:   receipt.NewService(st, nil, cfg.UploadBase, log),
		log:        log,
		corsOrigin: cfg.CORSOrigin,
		devErrors:  cfg.IsDevelopment(),
	}
}
