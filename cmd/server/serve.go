package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"skillexchange/internal/handler"
	"skillexchange/internal/infrastructure/database"
	"skillexchange/internal/infrastructure/mq"
	"skillexchange/internal/job"
	"skillexchange/internal/payment"
	"skillexchange/internal/service"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Bool("migrate", true, "Create or update the schema before serving")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and background jobs",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	cfg := a.cfg

	if migrate, _ := cmd.Flags().GetBool("migrate"); migrate {
		if err := database.Migrate(a.db); err != nil {
			return err
		}
	}

	verifier, err := payment.NewVerifier(&cfg.Payment)
	if err != nil {
		return err
	}

	h := handler.NewHandler(
		service.NewWalletService(a.db),
		a.ledger,
		service.NewDonationService(a.db, a.ledger, a.locker, cfg.Business.CommunityUserID),
		service.NewCreditService(a.db, a.ledger, a.locker, verifier),
	)

	var auth *handler.Authenticator
	if cfg.Auth.Enabled {
		auth = handler.NewAuthenticator(&cfg.Auth)
	}

	jobCtx, cancelJobs := context.WithCancel(ctx)
	defer cancelJobs()

	if cfg.Kafka.Enabled {
		publisher, err := mq.NewKafkaPublisher(&cfg.Kafka)
		if err != nil {
			return err
		}
		defer publisher.Close()

		outboxSender := job.NewOutboxSender(a.db, publisher, cfg.Business.MaxRetryCount)
		go outboxSender.Start(jobCtx)
	}

	if cfg.Business.AuditInterval > 0 {
		audit := job.NewLedgerAuditJob(a.db, cfg.Business.AuditInterval)
		go audit.Start(jobCtx)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler.WithCORS(handler.SetupRouter(h, auth), cfg.Server.AllowedOrigins),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("[Server] listening port=%d driver=%s", cfg.Server.Port, cfg.Database.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Println("[Server] shutting down")
	cancelJobs()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Server] shutdown err=%v", err)
	}

	log.Println("[Server] stopped")
	return nil
}
