package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var (
	ErrLockNotAcquired = errors.New("doctor lock not acquired")
)

// Locker serializes booking work per doctor
type Locker interface {
	WithDoctorLock(ctx context.Context, doctorID string, fn func(ctx context.Context) error) error
}

type redisDoctorLocker struct {
	client redis.Cmdable
	ttl    time.Duration
	log    logrus.FieldLogger
}

// NewRedisDoctorLocker creates a locker that uses a per doctor Redis key.
// When Redis cannot be reached the booking still runs, guarded only by the
// database row lock.
func NewRedisDoctorLocker(client redis.Cmdable, ttl time.Duration, log logrus.FieldLogger) Locker {
	return &redisDoctorLocker{
		client: client,
		ttl:    ttl,
		log:    log,
	}
}

func lockKey(doctorID string) string {
	return fmt.Sprintf("lock:doctor:%s", doctorID)
}

func (l *redisDoctorLocker) WithDoctorLock(ctx context.Context, doctorID string, fn func(ctx context.Context) error) error {
	key := lockKey(doctorID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("acquire doctor lock: %w", err)
		}
		l.log.WithFields(logrus.Fields{
			"doctor_id": doctorID,
			"error":     err,
		}).Warn("doctor lock unavailable, relying on database lock")
		return fn(ctx)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		// release even when ctx was cancelled by the caller
		_ = l.release(context.WithoutCancel(ctx), key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisDoctorLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release doctor lock: %w", err)
	}
	return nil
}

// NoopLocker runs fn directly. Used when Redis is not configured; the
// database row lock still serializes bookings.
type NoopLocker struct{}

func (NoopLocker) WithDoctorLock(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
