package notify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Config controls batching, deduplication and rate limiting
type Config struct {
	Enabled          bool
	BatchSize        int
	FlushInterval    time.Duration
	RatePerMinute    int
	SymbolRatePerMin int
	DedupeWindow     time.Duration
	QueueSize        int
}

// Dispatcher fans messages out to the configured channels. Messages are
// deduplicated, batched and rate limited before delivery. Critical
// messages flush immediately and bypass the per-symbol limit.
type Dispatcher struct {
	cfg       Config
	notifiers []Notifier
	logger    zerolog.Logger

	mu         sync.Mutex
	queue      []Message
	seen       map[string]time.Time
	symbolHits map[string][]time.Time

	global  *rate.Limiter
	flushCh chan struct{}

	enqueued   int64
	deduped    int64
	dropped    int64
	sent       int64
	batches    int64
	sendErrors int64
}

// NewDispatcher creates a dispatcher for the given channels
func NewDispatcher(cfg Config, notifiers []Notifier, logger zerolog.Logger) *Dispatcher {
	perSecond := rate.Limit(float64(cfg.RatePerMinute) / 60.0)
	return &Dispatcher{
		cfg:        cfg,
		notifiers:  notifiers,
		logger:     logger,
		queue:      make([]Message, 0, cfg.QueueSize),
		seen:       make(map[string]time.Time),
		symbolHits: make(map[string][]time.Time),
		global:     rate.NewLimiter(perSecond, cfg.RatePerMinute),
		flushCh:    make(chan struct{}, 1),
	}
}

// Start runs the flush loop until the context is cancelled
func (d *Dispatcher) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(d.cfg.FlushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				d.flush(context.Background())
				return
			case <-ticker.C:
				d.flush(ctx)
			case <-d.flushCh:
				d.flush(ctx)
			}
		}
	}()
}

// Enqueue accepts a message for delivery. Repeats within the dedupe
// window are suppressed. When the queue is full the oldest non-critical
// message is evicted to make room.
func (d *Dispatcher) Enqueue(msg Message) {
	if !d.cfg.Enabled {
		return
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	d.mu.Lock()
	d.enqueued++

	key := fingerprint(msg)
	now := time.Now()
	if last, ok := d.seen[key]; ok && now.Sub(last) < d.cfg.DedupeWindow {
		d.deduped++
		d.mu.Unlock()
		return
	}
	d.seen[key] = now

	if len(d.queue) >= d.cfg.QueueSize {
		if !d.evictOldestNonCriticalLocked() {
			// Queue is all critical; drop the newcomer unless it is too
			if msg.Severity != SeverityCritical {
				d.dropped++
				d.mu.Unlock()
				return
			}
			d.queue = d.queue[1:]
			d.dropped++
		}
	}
	d.queue = append(d.queue, msg)
	critical := msg.Severity == SeverityCritical
	d.mu.Unlock()

	if critical {
		select {
		case d.flushCh <- struct{}{}:
		default:
		}
	}
}

func (d *Dispatcher) evictOldestNonCriticalLocked() bool {
	for i, queued := range d.queue {
		if queued.Severity != SeverityCritical {
			d.queue = append(d.queue[:i], d.queue[i+1:]...)
			d.dropped++
			return true
		}
	}
	return false
}

// flush drains one batch through the rate limits and delivers it
func (d *Dispatcher) flush(ctx context.Context) {
	d.mu.Lock()
	d.pruneLocked()

	batch := make([]Message, 0, d.cfg.BatchSize)
	remaining := d.queue[:0]
	for i, msg := range d.queue {
		if len(batch) >= d.cfg.BatchSize || !d.global.Allow() {
			remaining = append(remaining, d.queue[i:]...)
			break
		}
		if msg.Severity != SeverityCritical && !d.allowSymbolLocked(msg.Symbol) {
			remaining = append(remaining, msg)
			continue
		}
		batch = append(batch, msg)
	}
	d.queue = remaining
	d.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	d.deliver(ctx, batch)
}

func (d *Dispatcher) deliver(ctx context.Context, batch []Message) {
	for _, n := range d.notifiers {
		if !n.IsEnabled() {
			continue
		}
		if err := n.Send(ctx, batch); err != nil {
			d.mu.Lock()
			d.sendErrors++
			d.mu.Unlock()
			d.logger.Error().Err(err).Str("channel", n.Name()).
				Int("count", len(batch)).Msg("Notification delivery failed")
			continue
		}
	}

	d.mu.Lock()
	d.sent += int64(len(batch))
	d.batches++
	d.mu.Unlock()
}

// allowSymbolLocked enforces the per-symbol sliding window
func (d *Dispatcher) allowSymbolLocked(symbol string) bool {
	if symbol == "" || d.cfg.SymbolRatePerMin <= 0 {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-time.Minute)

	hits := d.symbolHits[symbol]
	kept := hits[:0]
	for _, t := range hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= d.cfg.SymbolRatePerMin {
		d.symbolHits[symbol] = kept
		return false
	}
	d.symbolHits[symbol] = append(kept, now)
	return true
}

// pruneLocked discards dedupe fingerprints past their window
func (d *Dispatcher) pruneLocked() {
	cutoff := time.Now().Add(-d.cfg.DedupeWindow)
	for key, t := range d.seen {
		if t.Before(cutoff) {
			delete(d.seen, key)
		}
	}
}

// Stats reports dispatcher counters
func (d *Dispatcher) Stats() map[string]interface{} {
	d.mu.Lock()
	defer d.mu.Unlock()

	return map[string]interface{}{
		"enabled":     d.cfg.Enabled,
		"queued":      len(d.queue),
		"enqueued":    d.enqueued,
		"deduped":     d.deduped,
		"dropped":     d.dropped,
		"sent":        d.sent,
		"batches":     d.batches,
		"send_errors": d.sendErrors,
		"channels":    len(d.notifiers),
	}
}

func fingerprint(msg Message) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s", msg.Symbol, msg.Title, msg.Body)))
	return hex.EncodeToString(sum[:])
}
