package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "branch-protector",
		Short: "GitHub App that enforces branch protection on new repositories and pull requests",
	}

	var port int
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(port)
		},
	}
	serveCmd.Flags().IntVar(&port, "port", 0, "Port to listen on (overrides PORT)")

	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serve(portFlag int) error {
	// Load environment variables from .env file
	if err := godotenv.Load(".env"); err != nil {
		log.Println("Warning: .env file not found, checking system environment variables")
	} else {
		log.Println("✓ Successfully loaded .env file")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if portFlag != 0 {
		cfg.Port = portFlag
	}
	log.Println("✓ Configuration loaded, app ID:", cfg.AppID)

	app := newApp(cfg)

	if cfg.AMQPURL != "" {
		publisher, err := NewAuditPublisher(cfg.AMQPURL)
		if err != nil {
			return err
		}
		defer publisher.Close()
		app.audit = publisher
		log.Println("✓ Audit publisher connected, queue:", auditQueue)
	} else {
		log.Println("⚠ AMQP_URL not set, protection outcomes will be logged only")
	}

	// Register HTTP routes
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Post("/webhook", app.WebhookHandler)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Println("listening on port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
