package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/odyssey-erp/odyssey-recon/internal/shared"
)

const (
	orderNumberPrefix      = "ORD"
	orderNumberDigits      = 3
	defaultNumberAttempts  = 3
	orderNumberLayoutOfDay = "20060102"
)

// SequenceStore reads the current high-water mark of order numbers.
type SequenceStore interface {
	// LatestOrderNumber returns the greatest order number starting with
	// prefix, or "" when none exists. Longer suffixes rank above shorter ones.
	LatestOrderNumber(ctx context.Context, prefix string) (string, error)
}

// Locker grants exclusive access to a key until the returned func is called.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// OrderNumberPrefix returns the ORD<YYYYMMDD> prefix for day.
func OrderNumberPrefix(day time.Time) string {
	return orderNumberPrefix + day.Format(orderNumberLayoutOfDay)
}

// NextOrderNumber computes the number following latest within day. A missing
// or unparsable latest number restarts the day at 001.
func NextOrderNumber(day time.Time, latest string) string {
	prefix := OrderNumberPrefix(day)
	return formatOrderNumber(prefix, nextSequence(prefix, latest))
}

func nextSequence(prefix, latest string) int {
	if !strings.HasPrefix(latest, prefix) {
		return 1
	}
	n, err := strconv.Atoi(strings.TrimPrefix(latest, prefix))
	if err != nil || n < 0 {
		return 1
	}
	return n + 1
}

func formatOrderNumber(prefix string, seq int) string {
	return fmt.Sprintf("%s%0*d", prefix, orderNumberDigits, seq)
}

// NumberGenerator assigns collision-free order numbers. The read of the
// latest number and the insert that claims the next one run under a per-day
// lock; an insert that still collides (another writer outside the lock) is
// retried with a fresh number.
type NumberGenerator struct {
	store       SequenceStore
	locker      Locker
	maxAttempts int
	onConflict  func()
}

// NewNumberGenerator wires a generator. A nil locker falls back to an
// in-process DayLocker.
func NewNumberGenerator(store SequenceStore, locker Locker, maxAttempts int) *NumberGenerator {
	if locker == nil {
		locker = NewDayLocker()
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultNumberAttempts
	}
	return &NumberGenerator{store: store, locker: locker, maxAttempts: maxAttempts}
}

// Assign computes the next number for day and passes it to insert while the
// day lock is held. insert reports a taken number by returning an error that
// wraps shared.ErrConflict.
func (g *NumberGenerator) Assign(ctx context.Context, day time.Time, insert func(context.Context, string) error) (string, error) {
	prefix := OrderNumberPrefix(day)
	unlock, err := g.locker.Lock(ctx, shared.OrderNumberLockKey(day))
	if err != nil {
		return "", fmt.Errorf("reconciliation: lock %s: %w", prefix, err)
	}
	defer unlock()

	last := 0
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		latest, err := g.store.LatestOrderNumber(ctx, prefix)
		if err != nil {
			return "", fmt.Errorf("reconciliation: latest order number: %w", err)
		}
		seq := max(nextSequence(prefix, latest), last+1)
		number := formatOrderNumber(prefix, seq)

		err = insert(ctx, number)
		if err == nil {
			return number, nil
		}
		if !errors.Is(err, shared.ErrConflict) {
			return "", err
		}
		if g.onConflict != nil {
			g.onConflict()
		}
		last = seq
	}
	return "", fmt.Errorf("%w: %s after %d attempts", ErrOrderNumberExhausted, prefix, g.maxAttempts)
}

// DayLocker is an in-process Locker with one slot per key. Slots are dropped
// once nobody holds or waits for them.
type DayLocker struct {
	mu    sync.Mutex
	slots map[string]*daySlot
}

type daySlot struct {
	ch   chan struct{}
	refs int
}

// NewDayLocker builds an empty DayLocker.
func NewDayLocker() *DayLocker {
	return &DayLocker{slots: make(map[string]*daySlot)}
}

// Lock blocks until key is free or ctx is done.
func (l *DayLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = &daySlot{ch: make(chan struct{}, 1)}
		l.slots[key] = slot
	}
	slot.refs++
	l.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-slot.ch
				l.release(key, slot)
			})
		}, nil
	case <-ctx.Done():
		l.release(key, slot)
		return nil, ctx.Err()
	}
}

func (l *DayLocker) release(key string, slot *daySlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, key)
	}
}
