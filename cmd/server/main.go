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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiwari-pos/cashier/internal/backend"
	"github.com/kiwari-pos/cashier/internal/config"
	"github.com/kiwari-pos/cashier/internal/notify"
	"github.com/kiwari-pos/cashier/internal/router"
	"github.com/kiwari-pos/cashier/internal/service"
	"github.com/kiwari-pos/cashier/internal/session"
	"github.com/kiwari-pos/cashier/internal/ws"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pricing, err := config.LoadPricing(cfg.PricingFile)
	if err != nil {
		return err
	}
	source := cfg.Source
	if pricing.Source != "" {
		source = pricing.Source
	}

	// Session scratch store
	var store session.Store = session.NewMemoryStore()
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}
		store = session.NewPGStore(pool)
		log.Println("Session scratch store: postgres")
	} else {
		log.Println("Session scratch store: memory")
	}

	// Event fan-out: displays over WebSocket, other services over AMQP
	hub := ws.NewHub()
	go hub.Run(ctx)

	events := notify.Multi{hub}
	if cfg.AMQPURL != "" {
		amqp, err := notify.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return fmt.Errorf("connect amqp: %w", err)
		}
		defer amqp.Close()
		events = append(events, amqp)
		log.Printf("Publishing events to exchange %s", cfg.AMQPExchange)
	}

	client := backend.NewClient(backend.NewHTTPTransport(cfg.BackendURL, cfg.BackendToken, cfg.BackendTimeout))
	cashier := service.NewCashier(client, store, events, service.Defaults{
		ServiceFee: pricing.ServiceFee,
		Source:     source,
		Accounts:   pricing.Accounts,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router.New(cfg, cashier, hub),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Println("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
