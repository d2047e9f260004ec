package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jwebster45206/scene-tracker/internal/services/events"
	"github.com/jwebster45206/scene-tracker/internal/services/queue"
	"github.com/jwebster45206/scene-tracker/pkg/tracker"

	queuePkg "github.com/jwebster45206/scene-tracker/pkg/queue"
)

func defaultRedisURL() string {
	if url := os.Getenv("REDIS_URL"); url != "" {
		return url
	}
	return "localhost:6379"
}

func newEnqueueCmd() *cobra.Command {
	var (
		redisURL string
		chatID   string
		index    int
		anchor   int
		reqType  string
		include  string
	)
	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Queue a tracker generation request",
		Long:  "Pushes a generation request for one message onto the worker queue and announces it on the chat's event channel.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(chatID)
			if err != nil {
				return fmt.Errorf("invalid chat id: %w", err)
			}
			if index < 0 {
				return fmt.Errorf("message index cannot be negative, got %d", index)
			}
			typ := queuePkg.RequestType(reqType)
			if typ != queuePkg.RequestTypeGenerate && typ != queuePkg.RequestTypeAuto {
				return fmt.Errorf("unknown request type %q", reqType)
			}
			if _, err := tracker.ParseInclude(include); err != nil {
				return err
			}

			log := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
			client, err := queue.NewClient(redisURL, log)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx := cmd.Context()
			req := queuePkg.NewRequest(typ, id, index)
			req.Anchor = anchor
			req.Include = include

			requests := queue.NewRequestQueue(client)
			if err := requests.Enqueue(ctx, req); err != nil {
				return err
			}
			broadcaster := events.NewBroadcaster(client.GetRedisClient(), log)
			if err := broadcaster.PublishRequestQueued(ctx, id, req.RequestID, index, string(typ)); err != nil {
				log.Warn("Failed to publish queued event", "error", err)
			}

			depth, err := requests.Depth(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued %s (%s, message %d), queue depth %d\n", req.RequestID, typ, index, depth)
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&redisURL, "redis", defaultRedisURL(), "Redis URL or host:port")
	cmd.Flags().StringVar(&chatID, "chat", "", "chat id")
	cmd.Flags().IntVar(&index, "index", 0, "message index")
	cmd.Flags().IntVar(&anchor, "anchor", -1, "last message the model reads (negative for the previous message)")
	cmd.Flags().StringVar(&reqType, "type", string(queuePkg.RequestTypeGenerate), "request type (generate or auto)")
	cmd.Flags().StringVar(&include, "include", "dynamic", "fields to include (dynamic, static or all)")
	_ = cmd.MarkFlagRequired("chat")

	cmd.AddCommand(newPendingCmd(&redisURL))
	return cmd
}

func newPendingCmd(redisURL *string) *cobra.Command {
	var (
		limit    int
		clearAll bool
	)
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List or clear queued requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
			client, err := queue.NewClient(*redisURL, log)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx := cmd.Context()
			requests := queue.NewRequestQueue(client)
			if clearAll {
				if err := requests.Clear(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "queue cleared")
				return nil
			}

			pending, err := requests.Peek(ctx, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(pending) == 0 {
				fmt.Fprintln(out, "queue is empty")
				return nil
			}
			for _, req := range pending {
				fmt.Fprintf(out, "%s %-8s chat=%s message=%d attempts=%d\n",
					req.RequestID, req.Type, req.ChatID, req.MessageIndex, req.Attempts)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum requests to list (0 for all)")
	cmd.Flags().BoolVar(&clearAll, "clear", false, "remove every queued request")
	return cmd
}
