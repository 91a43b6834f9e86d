package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/models"
)

// RedisQueue implements Queue against a Redis-backed job runtime. Entries
// live as JSON in a hash; the waiting/failed/stalled buckets are sets of IDs.
type RedisQueue struct {
	name   string
	client *redis.Client
}

// Compile-time check.
var _ Queue = (*RedisQueue)(nil)

// NewRedisQueue wraps an existing Redis client for the named queue.
func NewRedisQueue(name string, client *redis.Client) *RedisQueue {
	return &RedisQueue{name: name, client: client}
}

// Name identifies the queue.
func (q *RedisQueue) Name() string {
	return q.name
}

func (q *RedisQueue) entriesKey() string {
	return fmt.Sprintf("queue:%s:entries", q.name)
}

func (q *RedisQueue) bucketKey(bucket string) string {
	return fmt.Sprintf("queue:%s:%s", q.name, bucket)
}

// Enqueue adds an entry to the waiting set.
func (q *RedisQueue) Enqueue(ctx context.Context, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, q.entriesKey(), entry.ID, data)
	pipe.SAdd(ctx, q.bucketKey("waiting"), entry.ID)
	_, err = pipe.Exec(ctx)
	return err
}

func (q *RedisQueue) listBucket(ctx context.Context, bucket string) ([]Entry, error) {
	ids, err := q.client.SMembers(ctx, q.bucketKey(bucket)).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	raw, err := q.client.HMGet(ctx, q.entriesKey(), ids...).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(raw))
	for _, value := range raw {
		s, ok := value.(string)
		if !ok {
			continue // entry hash and bucket set drifted; skip the orphan id
		}
		var entry Entry
		if err := json.Unmarshal([]byte(s), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ListWaiting returns entries waiting to be claimed.
func (q *RedisQueue) ListWaiting(ctx context.Context) ([]Entry, error) {
	return q.listBucket(ctx, "waiting")
}

// ListFailed returns entries whose processing failed.
func (q *RedisQueue) ListFailed(ctx context.Context) ([]Entry, error) {
	return q.listBucket(ctx, "failed")
}

// ListStalled returns entries claimed by workers that stopped heartbeating.
func (q *RedisQueue) ListStalled(ctx context.Context) ([]Entry, error) {
	return q.listBucket(ctx, "stalled")
}

// Retry moves a failed entry back to the waiting set in place.
func (q *RedisQueue) Retry(ctx context.Context, id string) error {
	raw, err := q.client.HGet(ctx, q.entriesKey(), id).Result()
	if errors.Is(err, redis.Nil) {
		return models.ErrQueueEntryMissing
	}
	if err != nil {
		return err
	}

	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return err
	}
	entry.AttemptsMade++
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, q.entriesKey(), id, data)
	pipe.SRem(ctx, q.bucketKey("failed"), id)
	pipe.SRem(ctx, q.bucketKey("stalled"), id)
	pipe.SAdd(ctx, q.bucketKey("waiting"), id)
	_, err = pipe.Exec(ctx)
	return err
}

// Remove deletes an entry from the queue entirely.
func (q *RedisQueue) Remove(ctx context.Context, id string) error {
	pipe := q.client.TxPipeline()
	pipe.HDel(ctx, q.entriesKey(), id)
	pipe.SRem(ctx, q.bucketKey("waiting"), id)
	pipe.SRem(ctx, q.bucketKey("failed"), id)
	pipe.SRem(ctx, q.bucketKey("stalled"), id)
	_, err := pipe.Exec(ctx)
	return err
}
