// Command audit-tail follows the audit topic and logs each authorization
// event, optionally for a single session.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"passport-id/internal/audit"
	"passport-id/internal/platform/config"
	"passport-id/internal/platform/kafka/consumer"
	"passport-id/internal/platform/logger"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Environment)

	sessionID := flag.String("session", "", "only show events for this session id")
	group := flag.String("group", "passport-id-audit-tail", "consumer group id")
	fromStart := flag.Bool("from-start", false, "read the topic from the earliest offset")
	flag.Parse()

	handler := audit.NewStoreHandler(audit.NewLogStore(log), *sessionID)
	cons, err := consumer.New(consumer.Config{
		Brokers:   cfg.Kafka.Brokers,
		GroupID:   *group,
		Topics:    []string{cfg.Kafka.AuditTopic},
		FromStart: *fromStart,
	}, handler, log)
	if err != nil {
		log.Error("failed to create audit consumer", "error", err)
		os.Exit(1)
	}

	log.Info("tailing audit events",
		"topic", cfg.Kafka.AuditTopic,
		"group", *group,
		"session_id", *sessionID,
	)
	cons.Start()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := cons.Stop(stopCtx); err != nil {
		log.Error("audit consumer did not stop cleanly", "error", err)
	}
}
