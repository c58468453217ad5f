package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sbj175/trade-journal/internal/api"
	"github.com/sbj175/trade-journal/internal/cache"
	"github.com/sbj175/trade-journal/internal/config"
	"github.com/sbj175/trade-journal/internal/crypto"
	"github.com/sbj175/trade-journal/internal/database"
	"github.com/sbj175/trade-journal/internal/kafka"
	"github.com/sbj175/trade-journal/internal/models"
	"github.com/sbj175/trade-journal/internal/pipeline"
)

func main() {
	cfg := config.Load()

	if err := crypto.Init(cfg.Encryption.Key); err != nil {
		log.Fatalf("Credential encryption misconfigured: %v", err)
	}

	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.RunMigrations(cfg.Database.MigrationsPath); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	if !cfg.Auth.MultiTenant {
		if err := db.EnsureDefaultUser(); err != nil {
			log.Fatalf("Failed to ensure default user: %v", err)
		}
	}

	var chains *cache.ChainCache
	if cfg.Redis.Enabled {
		chains = cache.NewChainCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer chains.Close()
	}

	producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic)
	defer producer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Broker sync batches arrive over Kafka; each one is ingested and the
	// user's ledger reprocessed. One goroutine per consumer; runs are
	// serialized per user by the consumer's ordering.
	consumer := kafka.NewConsumer(
		cfg.Kafka.Brokers, cfg.Kafka.IngestTopic, cfg.Kafka.ConsumerGroup,
		db,
		func(userID string, affectedUnderlyings []string) error {
			result, err := pipeline.ReprocessFromStore(db, userID, affectedUnderlyings)
			if err != nil {
				if pubErr := producer.PublishPipelineFailed(ctx, userID, err); pubErr != nil {
					log.Printf("Failed to publish pipeline failure: %v", pubErr)
				}
				return err
			}
			chains.Invalidate(ctx, userID)
			return producer.PublishPipelineCompleted(ctx, models.LedgerEvent{
				UserID:           userID,
				OrdersAssembled:  result.OrdersAssembled,
				LotsCreated:      result.LotsCreated,
				ChainsDerived:    result.ChainsDerived,
				GroupsSeeded:     result.GroupsSeeded,
				EquityLotsNetted: result.EquityLotsNetted,
			})
		},
	)
	go func() {
		if err := consumer.Start(ctx); err != nil {
			log.Printf("Kafka consumer stopped: %v", err)
		}
	}()

	handler := api.NewHandler(db, chains, producer, cfg.Auth.MultiTenant)
	router := api.SetupRoutes(handler)

	server := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}
