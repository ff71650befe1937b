package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aquasense/waterquality-server/internal/alerting"
	"github.com/aquasense/waterquality-server/internal/catalog"
	"github.com/aquasense/waterquality-server/internal/cooldown"
	"github.com/aquasense/waterquality-server/internal/database"
	"github.com/aquasense/waterquality-server/internal/device"
	"github.com/aquasense/waterquality-server/internal/metrics"
	"github.com/aquasense/waterquality-server/internal/pipeline"
	"github.com/aquasense/waterquality-server/internal/protocol"
	"github.com/aquasense/waterquality-server/internal/queue"
	"github.com/aquasense/waterquality-server/internal/store"
	"github.com/aquasense/waterquality-server/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	fmt.Println("Starting Alerting Service...")

	// Connect to database
	db, err := database.Connect(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	fmt.Println("Connected to database")

	// Run migrations
	if err := db.RunMigrations("migrations"); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	fmt.Println("Connected to Redis")

	// Create Kafka topics
	if err := queue.CreateTopic(
		cfg.Kafka.Brokers,
		cfg.Kafka.TopicReadings,
		cfg.Kafka.NumPartitions,
		1, // replication factor
	); err != nil {
		fmt.Printf("Note: Topic creation failed (may already exist): %v\n", err)
	}

	if err := queue.CreateTopic(
		cfg.Kafka.Brokers,
		cfg.Kafka.TopicAlerts,
		1, // single partition for alerts
		1, // replication factor
	); err != nil {
		fmt.Printf("Note: Topic creation failed (may already exist): %v\n", err)
	}

	// Wire the lifecycle manager and its collaborators
	alertStore := store.NewPostgresStore(db)

	cooldowns := cooldown.NewRedisRegistry(redisClient, cooldown.Policy{
		Critical: cfg.Cooldown.Critical,
		Warning:  cfg.Cooldown.Warning,
	})

	alertProducer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts)
	defer alertProducer.Close()
	dispatcher := alerting.NewKafkaDispatcher(alertProducer)
	fmt.Println("Alert notification producer initialized")

	devices := device.NewRegistry(db, 5*time.Minute)
	thresholds := catalog.New(cfg.Thresholds, db)

	manager := alerting.NewManager(alertStore, cooldowns, dispatcher, devices, thresholds)

	// Expose metrics
	metrics.Register(db.DB)
	metrics.Serve(cfg.Metrics.Addr)
	fmt.Printf("Metrics available on %s/metrics\n", cfg.Metrics.Addr)

	// Worker pool: readings from different devices are processed
	// concurrently; violation handling failures stay per-reading.
	pool := pipeline.NewPool(cfg.Pipeline.Workers, cfg.Pipeline.JobQueueSize, func(ctx context.Context, reading *protocol.ReadingMessage) {
		metrics.ReadingsEvaluated.Inc()

		for _, result := range manager.ProcessReading(ctx, reading) {
			metrics.ViolationsDetected.WithLabelValues(
				string(result.Violation.Parameter),
				string(result.Violation.Severity),
			).Inc()

			if result.Err != nil {
				metrics.ViolationFailures.Inc()
				continue
			}
			metrics.AlertOutcomes.WithLabelValues(string(result.Outcome)).Inc()
		}
	})
	pool.Start()

	// Create consumer for readings
	consumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicReadings, "alerting-group")
	defer consumer.Close()
	metrics.RegisterConsumerLag(consumer.Stats)
	fmt.Println("Kafka consumer initialized")

	fmt.Println("\n✓ Alerting Service is running")
	fmt.Println("✓ Press Ctrl+C to stop")

	// Start consuming and evaluating
	go func() {
		for {
			msg, err := consumer.Consume(ctx)
			if err != nil {
				log.Printf("Failed to consume message: %v\n", err)
				continue
			}

			// Decode and validate the reading
			reading, err := protocol.DecodeReadingMessage(msg.Value)
			if err != nil {
				log.Printf("Failed to decode reading: %v\n", err)
				metrics.ReadingsRejected.Inc()
				consumer.Commit(ctx, msg)
				continue
			}

			kafkaMsg := msg
			job := &pipeline.Job{
				Reading: reading,
				Ack: func() {
					if err := consumer.Commit(ctx, kafkaMsg); err != nil {
						log.Printf("Failed to commit offset: %v\n", err)
					}
				},
			}

			if err := pool.Submit(job); err != nil {
				log.Printf("Failed to submit reading: %v\n", err)
				return
			}
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nShutting down gracefully...")
	pool.Stop()
}
