/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/esurat/apiserver/config"
	"github.com/esurat/apiserver/internal/logger"
	"github.com/esurat/apiserver/internal/mq"
	"github.com/esurat/apiserver/internal/services"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect activity events published to the message broker",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Subscribe to the activity channel and log every event",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		log, err := logger.New(cfg.Logger)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		bus, err := mq.Open(cmd.Context(), cfg.MQ)
		if err != nil {
			return err
		}
		if bus == nil {
			return errors.New("MQ_BACKEND is not configured")
		}
		defer func() { _ = bus.Close() }()

		log.Info("tailing activity events", zap.String("channel", cfg.MQ.ActivityChannel))
		err = bus.Subscribe(cmd.Context(), cfg.MQ.ActivityChannel, func(ctx context.Context, msg mq.Message) error {
			var event services.ActivityEvent
			if err := json.Unmarshal(msg.Data, &event); err != nil {
				// Malformed events are dropped rather than redelivered forever.
				log.Warn("skip malformed activity event", zap.String("id", msg.ID), zap.Error(err))
				return nil
			}
			fields := []zap.Field{
				zap.String("message_id", msg.ID),
				zap.Int64("activity_id", event.ID),
				zap.Int64("user_id", event.UserID),
				zap.String("action", event.Action),
				zap.String("description", event.Description),
				zap.Time("created_at", event.CreatedAt),
			}
			if event.DocumentID != nil {
				fields = append(fields, zap.Int64("document_id", *event.DocumentID))
			}
			log.Info("activity", fields...)
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("subscribe: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}
