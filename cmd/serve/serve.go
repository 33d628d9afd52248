// Package serve contains the HTTP server command.
package serve

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"spendsense/pipeline/cmd/common"
	"spendsense/pipeline/cmd/root"
	"spendsense/pipeline/internal/logging"
	"spendsense/pipeline/internal/server"
)

// Cmd is the serve command.
var Cmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long:  `Run the HTTP API server exposing upload, transactions, KPIs, insights and corrections.`,
	RunE:  run,
}

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pipe, err := common.OpenPipeline(ctx, root.Cfg, root.Log)
	if err != nil {
		return err
	}
	defer func() { _ = pipe.Close() }()

	srv := server.New(server.Deps{
		Ingestor:    pipe.Ingestor,
		Parser:      pipe.Parser,
		Enricher:    pipe.Enricher,
		Resolver:    pipe.Resolver,
		Insights:    pipe.Insights,
		Corrections: pipe.Corrections,
	}, root.Log, root.Cfg.Server.UploadMaxBytes)

	httpSrv := &http.Server{
		Addr:              root.Cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		root.Log.Info("HTTP server listening",
			logging.Field{Key: "addr", Value: httpSrv.Addr})
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		root.Log.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}
