package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/scene-tracker/pkg/queue"
)

// requestsKey is the global list of pending tracker requests.
const requestsKey = "tracker-requests"

// MaxAttempts bounds how often a request is re-queued before it is dropped.
// Workers pause between retries, so this covers several minutes of a chat
// being locked by a running generation.
const MaxAttempts = 300

// ErrTooManyAttempts is returned by Requeue once a request has used up its
// attempts.
var ErrTooManyAttempts = errors.New("request exceeded maximum attempts")

// RequestQueue is a FIFO of tracker requests shared by the API and workers.
type RequestQueue struct {
	client *Client
}

func NewRequestQueue(client *Client) *RequestQueue {
	return &RequestQueue{
		client: client,
	}
}

// Enqueue adds a request to the end of the queue
func (q *RequestQueue) Enqueue(ctx context.Context, req *queue.Request) error {
	data, err := req.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize request: %w", err)
	}

	if err := q.client.rdb.RPush(ctx, requestsKey, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue request: %w", err)
	}
	q.client.logger.Debug("Request enqueued",
		"request_id", req.RequestID,
		"type", req.Type,
		"chat_id", req.ChatID.String(),
		"message_index", req.MessageIndex,
	)
	return nil
}

// Requeue puts a request that could not run yet back at the end of the queue
func (q *RequestQueue) Requeue(ctx context.Context, req *queue.Request) error {
	req.Attempts++
	if req.Attempts > MaxAttempts {
		return fmt.Errorf("%w: %s", ErrTooManyAttempts, req.RequestID)
	}
	return q.Enqueue(ctx, req)
}

// Dequeue removes and returns the next request. Returns nil if the queue is
// empty.
func (q *RequestQueue) Dequeue(ctx context.Context) (*queue.Request, error) {
	result, err := q.client.rdb.LPop(ctx, requestsKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Queue is empty
		}
		return nil, fmt.Errorf("failed to dequeue request: %w", err)
	}
	return parseRequest(result)
}

// BlockingDequeue waits up to timeout for a request. Returns nil when the
// timeout passes or ctx ends with the queue still empty.
func (q *RequestQueue) BlockingDequeue(ctx context.Context, timeout time.Duration) (*queue.Request, error) {
	result, err := q.client.rdb.BLPop(ctx, timeout, requestsKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || ctx.Err() != nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue request: %w", err)
	}

	// BLPop returns [key, value]
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BLPop result: %v", result)
	}
	return parseRequest(result[1])
}

// Peek returns up to limit pending requests without removing them. A limit
// of zero or less returns all of them.
func (q *RequestQueue) Peek(ctx context.Context, limit int) ([]*queue.Request, error) {
	end := int64(limit - 1)
	if limit <= 0 {
		end = -1 // Get all
	}
	items, err := q.client.rdb.LRange(ctx, requestsKey, 0, end).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to peek requests: %w", err)
	}

	reqs := make([]*queue.Request, 0, len(items))
	for _, item := range items {
		req, err := parseRequest(item)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

// Depth returns the number of pending requests
func (q *RequestQueue) Depth(ctx context.Context) (int, error) {
	count, err := q.client.rdb.LLen(ctx, requestsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get request queue depth: %w", err)
	}
	return int(count), nil
}

// Clear drops every pending request
func (q *RequestQueue) Clear(ctx context.Context) error {
	if err := q.client.rdb.Del(ctx, requestsKey).Err(); err != nil {
		return fmt.Errorf("failed to clear request queue: %w", err)
	}
	return nil
}

func parseRequest(data string) (*queue.Request, error) {
	req, err := queue.FromJSON([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return req, nil
}
