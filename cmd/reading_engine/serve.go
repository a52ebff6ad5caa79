package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/visara/reading-engine/internal/server"
)

var servePublicURL string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes job and reading endpoints and runs the background job workers.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&servePublicURL, "public-url", "http://localhost:8080", "Base URL used in notification links")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := buildApp(ctx, servePublicURL)
	if err != nil {
		return err
	}
	defer a.close()

	a.manager.Start(ctx)

	srv := server.New(server.Config{Port: a.cfg.Port}, a.database, a.manager, a.logger)
	if err := srv.Start(); err != nil {
		return err
	}

	// Server has shut down; stop the workers and drain them.
	cancel()
	if err := a.manager.Wait(); err != nil {
		return fmt.Errorf("worker shutdown failed: %w", err)
	}
	return nil
}
