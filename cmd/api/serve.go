package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/mombo-site/mombo-api/internal/application"
	appanalysis "github.com/mombo-site/mombo-api/internal/application/analysis"
	appingredients "github.com/mombo-site/mombo-api/internal/application/ingredients"
	"github.com/mombo-site/mombo-api/internal/infra/httpserver"
	"github.com/mombo-site/mombo-api/internal/infra/imageproc"
	"github.com/mombo-site/mombo-api/internal/infra/ocr/clova"
	"github.com/mombo-site/mombo-api/internal/infra/storage"
	"github.com/mombo-site/mombo-api/internal/middleware"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), root, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply the schema before serving")
	return cmd
}

func runServe(parent context.Context, root *rootOptions, migrate bool) error {
	cfg, logger, err := root.load(true)
	if err != nil {
		return err
	}
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.db.Close()
	if migrate {
		if err := st.migrate(ctx, st.db); err != nil {
			return err
		}
	}

	blobs, err := storage.New(ctx, storage.Options{
		Endpoint:      cfg.Minio.Endpoint,
		Region:        cfg.Minio.Region,
		BucketName:    cfg.Minio.BucketName,
		AccessKey:     cfg.Minio.AccessKey,
		SecretKey:     cfg.Minio.SecretKey,
		UseSSL:        cfg.Minio.UseSSL,
		PublicBaseURL: cfg.Minio.PublicBaseURL,
	}, logger)
	if err != nil {
		return fmt.Errorf("minio init: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := middleware.NewMetrics(reg)

	analysisSvc := &appanalysis.Service{
		Images:      imageproc.NewProcessor(),
		OCR:         clova.NewClient(clova.Config{URL: cfg.OCR.URL, Secret: cfg.OCR.Secret, Lang: cfg.OCR.Lang, Timeout: cfg.OCR.Timeout}, nil, logger),
		Normalizer:  newNormalizer(cfg, logger),
		Dictionary:  st.ingredients,
		Results:     st.results,
		Blobs:       blobs,
		Users:       st.users,
		Failures:    st.failures,
		Clock:       application.SystemClock{},
		Metrics:     metrics,
		Logger:      logger,
		TargetWidth: cfg.Analysis.TargetWidth,
		Policy:      countPolicy(cfg),
	}
	ingredientSvc := appingredients.NewService(st.ingredients, logger)

	limiter := middleware.NewRateLimiter(cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate)
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				limiter.Sweep(10 * time.Minute)
			}
		}
	}()

	handler := httpserver.NewRouter(httpserver.Options{
		Analysis:    analysisSvc,
		Ingredients: ingredientSvc,
		Logger:      logger,
		Metrics:     metrics,
		Limiter:     limiter,
		Checkers: map[string]middleware.HealthChecker{
			"database": &middleware.DatabaseHealthChecker{DB: st.db},
			"storage":  blobs,
		},
		APIKeys:        cfg.Auth.APIKeys,
		AdminKeys:      cfg.Auth.AdminKeys,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server.listening", "addr", addr, "db", cfg.Database.Driver, "normalizer", cfg.Normalizer.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("server.shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server.shutdown_error", "err", err)
		return err
	}
	return nil
}
