package queue

import (
	"context"
	"encoding/json"
	"time"

	"codegrade/internal/common"
	"codegrade/internal/domain/model"

	"github.com/redis/go-redis/v9"
)

// ErrEmpty is returned by Pop when the bounded wait elapsed with no message.
// Callers treat it as the idle-poll path, not a failure.
var ErrEmpty = redis.Nil

// DispatchQueue is the durable FIFO hand-off between intake and the scheduler.
// Redis arbitrates pops, so multiple scheduler instances may safely compete.
type DispatchQueue struct {
	rdb  *redis.Client
	name string
}

func NewDispatchQueue(rdb *redis.Client, name string) *DispatchQueue {
	return &DispatchQueue{rdb: rdb, name: name}
}

func (q *DispatchQueue) Enqueue(ctx context.Context, msg model.DispatchMessage) error {
	msg.Version = model.DispatchMessageVersion
	data, err := json.Marshal(msg)
	if err != nil {
		return common.Errorf("dispatch queue: marshal message: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.name, data).Err(); err != nil {
		return common.Errorf("dispatch queue: LPUSH to %q: %w", q.name, err)
	}
	return nil
}

// Pop blocks for at most timeout and returns the raw message body. The
// scheduler owns parsing; a message is removed from the queue whether or not
// it turns out to be well-formed.
func (q *DispatchQueue) Pop(ctx context.Context, timeout time.Duration) (string, error) {
	res, err := q.rdb.BRPop(ctx, timeout, q.name).Result()
	if err != nil {
		return "", err
	}
	// BRPOP returns [queue name, value].
	if len(res) < 2 {
		return "", redis.Nil
	}
	return res[1], nil
}
