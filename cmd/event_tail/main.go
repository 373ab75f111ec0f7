package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"finapi/pkg/bootstrap"
	"finapi/pkg/config"
	"finapi/pkg/events"
	"finapi/pkg/logx"
)

func main() {
	queue := flag.String("queue", "finapi.tail", "queue to declare and consume")
	binding := flag.String("binding", "#", "routing key pattern, e.g. transaction.* or goal.completed")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := bootstrap.Logger(cfg).WithComponent(logx.ComponentEvents)
	if cfg.AMQPURL == "" {
		log.Error("AMQP_URL is not set")
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := events.Dial(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		log.Err(ctx, "dial amqp", err)
		os.Exit(1)
	}
	defer client.Close()

	err = client.Consume(ctx, *queue, *binding, log, func(e events.Event) error {
		args := []any{"event_type", string(e.Type), logx.FieldUserID, e.UserID, "entity_id", e.EntityID, "occurred_at", e.OccurredAt}
		if e.Amount != nil {
			args = append(args, "amount", e.Amount.String())
		}
		log.Info("event", args...)
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Err(ctx, "consume", err)
		os.Exit(1)
	}
}
