package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/scene-tracker/internal/logger"
	"github.com/jwebster45206/scene-tracker/internal/services/events"
	"github.com/jwebster45206/scene-tracker/internal/services/queue"
	queuePkg "github.com/jwebster45206/scene-tracker/pkg/queue"
)

const (
	workerTimeout = 5 * time.Second
	lockTTL       = 30 * time.Second
	// requestTimeout bounds one generation cycle including the fallback.
	requestTimeout = 3 * time.Minute
	// lockRetryDelay is the pause after re-queueing a request whose chat is
	// locked by another worker.
	lockRetryDelay = time.Second
)

// errChatLocked reports that the dequeued request went back to the queue
// because another worker holds its chat.
var errChatLocked = errors.New("chat is locked by another worker")

var releaseLockScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

var refreshLockScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// Worker processes tracker requests from the queue
type Worker struct {
	id          string
	queue       *queue.RequestQueue
	processor   *TrackerProcessor
	broadcaster *events.Broadcaster
	redisClient *redis.Client
	log         *slog.Logger
	ctx         context.Context
	cancel      context.CancelFunc

	dequeueTimeout time.Duration
	retryDelay     time.Duration
}

// New creates a new worker instance
func New(requests *queue.RequestQueue, processor *TrackerProcessor, redisClient *redis.Client, log *slog.Logger, workerID string) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	if workerID == "" {
		workerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}

	return &Worker{
		id:             workerID,
		queue:          requests,
		processor:      processor,
		broadcaster:    events.NewBroadcaster(redisClient, log),
		redisClient:    redisClient,
		log:            log,
		ctx:            ctx,
		cancel:         cancel,
		dequeueTimeout: workerTimeout,
		retryDelay:     lockRetryDelay,
	}
}

// ID returns the worker id, which is also the lock owner value.
func (w *Worker) ID() string {
	return w.id
}

// Start begins processing requests from the queue
func (w *Worker) Start() error {
	w.log.Info("Worker starting", "worker_id", w.id)

	for {
		select {
		case <-w.ctx.Done():
			w.log.Info("Worker shutting down", "worker_id", w.id)
			return nil
		default:
			err := w.processNextRequest()
			switch {
			case err == nil:
			case errors.Is(err, errChatLocked):
				w.pause(w.retryDelay)
			default:
				logger.WithError(w.log, err).Error("Error processing request", "worker_id", w.id)
				// Continue processing even on error
				w.pause(time.Second)
			}
		}
	}
}

func (w *Worker) pause(d time.Duration) {
	select {
	case <-w.ctx.Done():
	case <-time.After(d):
	}
}

// Stop gracefully shuts down the worker
func (w *Worker) Stop() {
	w.log.Info("Worker stop requested", "worker_id", w.id)
	w.cancel()
}

// processNextRequest pulls the next request from the queue and processes it.
// It returns errChatLocked when the request was put back for later.
func (w *Worker) processNextRequest() error {
	req, err := w.queue.BlockingDequeue(w.ctx, w.dequeueTimeout)
	if err != nil {
		return fmt.Errorf("failed to dequeue request: %w", err)
	}
	if req == nil {
		// Queue is empty or timeout occurred - this is normal
		return nil
	}

	w.log.Info("Received request from queue",
		"worker_id", w.id,
		"request_id", req.RequestID,
		"type", req.Type,
		"chat_id", req.ChatID.String(),
		"message_index", req.MessageIndex,
	)

	locked, err := w.acquireChatLock(req.ChatID)
	if err != nil {
		return fmt.Errorf("failed to acquire chat lock: %w", err)
	}
	if !locked {
		// Another worker is generating for this chat
		w.log.Info("Chat already locked, re-queueing request",
			"worker_id", w.id,
			"request_id", req.RequestID,
			"chat_id", req.ChatID.String(),
		)
		return w.requeue(req)
	}
	defer w.releaseChatLock(req.ChatID)

	return w.processRequest(req)
}

func (w *Worker) requeue(req *queuePkg.Request) error {
	err := w.queue.Requeue(w.ctx, req)
	if errors.Is(err, queue.ErrTooManyAttempts) {
		w.log.Warn("Dropping request after too many attempts", "request_id", req.RequestID, "attempts", req.Attempts)
		if pubErr := w.broadcaster.PublishRequestFailed(w.ctx, req.ChatID, req.RequestID, req.MessageIndex, err.Error()); pubErr != nil {
			w.log.Error("Failed to publish failure event", "error", pubErr)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to re-queue request: %w", err)
	}
	return errChatLocked
}

func lockKey(chatID uuid.UUID) string {
	return fmt.Sprintf("tracker-lock:%s", chatID.String())
}

// acquireChatLock attempts to acquire a lock for a chat
// Returns true if lock was acquired, false if already locked
func (w *Worker) acquireChatLock(chatID uuid.UUID) (bool, error) {
	return w.redisClient.SetNX(w.ctx, lockKey(chatID), w.id, lockTTL).Result()
}

// releaseChatLock releases the lock for a chat if this worker still owns it
func (w *Worker) releaseChatLock(chatID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := releaseLockScript.Run(ctx, w.redisClient, []string{lockKey(chatID)}, w.id).Err(); err != nil {
		w.log.Error("Failed to release chat lock", "error", err, "chat_id", chatID.String())
	}
}

// holdChatLock keeps extending the lock until stop is closed, so model calls
// longer than the TTL stay protected.
func (w *Worker) holdChatLock(chatID uuid.UUID, stop <-chan struct{}) {
	ticker := time.NewTicker(lockTTL / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			err := refreshLockScript.Run(w.ctx, w.redisClient, []string{lockKey(chatID)}, w.id, lockTTL.Milliseconds()).Err()
			if err != nil && !errors.Is(err, context.Canceled) {
				w.log.Warn("Failed to refresh chat lock", "error", err, "chat_id", chatID.String())
			}
		}
	}
}

// processRequest processes a single request using the TrackerProcessor
func (w *Worker) processRequest(req *queuePkg.Request) error {
	start := time.Now()

	stop := make(chan struct{})
	defer close(stop)
	go w.holdChatLock(req.ChatID, stop)

	ctx, cancel := context.WithTimeout(w.ctx, requestTimeout)
	defer cancel()

	if err := w.processor.Process(ctx, req); err != nil {
		return fmt.Errorf("failed to process %s request %s: %w", req.Type, req.RequestID, err)
	}

	w.log.Info("Request processed successfully",
		"worker_id", w.id,
		"request_id", req.RequestID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
