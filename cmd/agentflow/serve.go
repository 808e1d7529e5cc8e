package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Serves POST /agent, POST /support/process, POST /support/pipeline, GET /health and GET /metrics.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := loadApp(cmd)
		if err != nil {
			return err
		}
		if port, _ := cmd.Flags().GetString("port"); port != "" {
			app.Config.Port = port
		}

		srv, err := app.Server()
		if err != nil {
			return err
		}

		httpSrv := &http.Server{
			Addr:              app.Config.Addr(),
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		serverErrors := make(chan error, 1)
		go func() {
			app.Logger.Info("server.listening", "addr", httpSrv.Addr, "model", app.Model.Info().String())
			serverErrors <- httpSrv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		app.Logger.Info("server.shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			app.Logger.Error("server.shutdown.failed", "error", err.Error())
			return httpSrv.Close()
		}
		app.Logger.Info("server.stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "", "port to listen on; overrides PORT")
}
