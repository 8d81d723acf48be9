package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	httpDelivery "github.com/dealscout/backend/internal/delivery/http"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes deal search, matching, catalog and merchant resolution endpoints.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	log.Printf("Starting DealScout Backend v1.0.0")

	handler := httpDelivery.NewHandler(a.services, a.collections)
	router := httpDelivery.SetupRouter(a.cfg, handler)

	addr := fmt.Sprintf(":%s", orDefault(servePort, a.cfg.Server.Port))
	log.Printf("Server listening on %s", addr)

	if err := router.Run(addr); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}
