package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"feetrack/internal/config"
	"feetrack/internal/fees"
	"feetrack/internal/queue"
	"feetrack/internal/store"
)

// Worker consumes status-changed events and refreshes the cached collection
// totals for the affected dates, so the dashboard poll stays cheap.
func main() {
	cfg := config.Load()
	logger := logrus.New()
	if cfg.Env == "production" || cfg.Env == "prod" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns)
	if err != nil {
		logger.WithError(err).Fatal("db connect failed")
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "feetrack:status-events")
	}

	cache := fees.NewCollectionCache(redisClient.Client, cfg.CollectionCacheTTL)
	svc := fees.NewService(fees.NewRepository(db.Client), nil, cache, logger)

	messages, err := q.Consume(ctx)
	if err != nil {
		logger.WithError(err).Fatal("queue consume init failed")
	}

	logger.Info("worker started, waiting for status events")
	for msg := range messages {
		if msg.Type != fees.EventStatusChanged {
			continue
		}

		var evt fees.StatusEvent
		if err := json.Unmarshal(msg.Body, &evt); err != nil || evt.Date == "" {
			logger.WithField("message_id", msg.ID).Warn("dropping malformed status event")
			continue
		}

		summary, err := svc.RefreshCollection(ctx, evt.Date)
		if err != nil {
			logger.WithError(err).WithField("date", evt.Date).Warn("collection refresh failed")
			continue
		}
		logger.WithFields(logrus.Fields{
			"date":   evt.Date,
			"online": summary.OnlineCount,
			"cash":   summary.CashCount,
		}).Info("collection totals refreshed")
	}

	logger.Info("worker stopped")
}
