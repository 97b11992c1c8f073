package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/holelung/Face-recognition-attendance-check/internal/session"
	"github.com/holelung/Face-recognition-attendance-check/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the attendance API server.
Camera clients open a capture session, post face descriptors and resolve
unknown faces; students and attendance records are served under /api/v1.
Without DATABASE_URL the server keeps everything in memory.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}

	b, err := openBackend(cfg, log, true)
	if err != nil {
		return err
	}
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := buildComponents(ctx, cfg, b, log)
	if err != nil {
		return err
	}

	port, host := resolveServeHostPort(cmd)
	server := web.NewServer(cfg, port, host, web.Dependencies{
		Identities: b.identities,
		Registrar:  c.registrar,
		Recorder:   c.recorder,
		Sessions:   session.NewManager(c.engine, cfg.Session.IdleTimeout(), log),
	}, log)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	log.Infof("attendance API listening on http://%s:%d", host, port)
	return serveUntilSignal(ctx, server, sigChan, log)
}

// httpServer is the part of web.Server that runServe drives.
type httpServer interface {
	Start() error
	Shutdown(ctx context.Context) error
}

// serveUntilSignal runs server until a signal arrives and returns only after
// Shutdown has finished draining requests, so the backend can be closed safely.
func serveUntilSignal(ctx context.Context, server httpServer, sigChan <-chan os.Signal, log logrus.FieldLogger) error {
	shutdownDone := make(chan struct{})
	stopWaiting := make(chan struct{})

	go func() {
		defer close(shutdownDone)
		select {
		case <-sigChan:
		case <-stopWaiting:
			return
		}
		log.Info("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("error during shutdown")
		}
	}()

	err := server.Start()
	close(stopWaiting)
	<-shutdownDone
	if err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
