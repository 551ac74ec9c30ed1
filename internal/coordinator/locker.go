package coordinator

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// ErrLockTimeout is retryable: the caller's activity retry policy decides
// when to give up.
var ErrLockTimeout = errors.New("coordinator: lock acquisition timed out")

// ILocker provides short-lived mutual exclusion on a string key. The
// returned release function must always be called.
type ILocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// PostgresLocker maps keys onto advisory locks. The lock is held by a
// dedicated transaction and released when that transaction ends, so a
// crashed holder releases implicitly when its session dies.
type PostgresLocker struct {
	db *gorm.DB
}

func NewPostgresLocker(db *gorm.DB) *PostgresLocker {
	return &PostgresLocker{db: db}
}

func lockKey(key string) int64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return int64(h.Sum64())
}

func (l *PostgresLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	deadline := time.Now().Add(ttl)
	id := lockKey(key)

	for {
		tx := l.db.WithContext(ctx).Begin()
		if tx.Error != nil {
			return nil, tx.Error
		}

		var acquired bool
		err := tx.Raw("SELECT pg_try_advisory_xact_lock(?)", id).Scan(&acquired).Error
		if err != nil {
			tx.Rollback()
			return nil, err
		}

		if acquired {
			return func() { tx.Commit() }, nil
		}

		tx.Rollback()
		if time.Now().After(deadline) {
			return nil, errors.Wrap(ErrLockTimeout, key)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// MemoryLocker is the single-node variant used by tests and local runs.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]chan struct{})}
}

func (l *MemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	timeout := time.After(ttl)

	for {
		l.mu.Lock()
		holder, held := l.locks[key]
		if !held {
			done := make(chan struct{})
			l.locks[key] = done
			l.mu.Unlock()

			var once sync.Once
			return func() {
				once.Do(func() {
					l.mu.Lock()
					delete(l.locks, key)
					l.mu.Unlock()
					close(done)
				})
			}, nil
		}
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeout:
			return nil, errors.Wrap(ErrLockTimeout, key)
		case <-holder:
		}
	}
}
