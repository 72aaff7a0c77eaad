package news

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/SCPrime/ai-Trader-sub001/internal/events"
)

// Provider fetches recent headlines for a set of symbols
type Provider interface {
	Fetch(ctx context.Context, symbols []string) ([]Headline, error)
	Name() string
}

// Config holds ingest configuration
type Config struct {
	PollInterval        time.Duration
	SimilarityThreshold float64
	Retention           time.Duration
	Symbols             []string
}

// Ingestor polls a provider, folds repeats into story clusters, and
// publishes an event only for first-seen stories.
type Ingestor struct {
	config   Config
	provider Provider
	deduper  *Deduper
	bus      *events.Bus
	logger   zerolog.Logger

	mu         sync.RWMutex
	fetched    int64
	suppressed int64
	published  int64
	lastPoll   time.Time
	lastError  string
}

// NewIngestor creates an ingestor
func NewIngestor(cfg Config, provider Provider, bus *events.Bus, logger zerolog.Logger) *Ingestor {
	return &Ingestor{
		config:   cfg,
		provider: provider,
		deduper:  NewDeduper(cfg.SimilarityThreshold, cfg.Retention),
		bus:      bus,
		logger:   logger,
	}
}

// Start runs the poll and cleanup loops until the context is cancelled
func (in *Ingestor) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(in.config.PollInterval)
		defer ticker.Stop()

		in.poll(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				in.poll(ctx)
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(in.config.Retention / 4)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := in.deduper.Cleanup(); removed > 0 {
					in.logger.Debug().Int("removed", removed).Msg("pruned idle story clusters")
				}
			}
		}
	}()
}

func (in *Ingestor) poll(ctx context.Context) {
	headlines, err := in.provider.Fetch(ctx, in.config.Symbols)

	in.mu.Lock()
	in.lastPoll = time.Now()
	if err != nil {
		in.lastError = err.Error()
		in.mu.Unlock()
		in.logger.Warn().Err(err).Str("provider", in.provider.Name()).Msg("news fetch failed")
		return
	}
	in.lastError = ""
	in.fetched += int64(len(headlines))
	in.mu.Unlock()

	for _, h := range headlines {
		story, isNew := in.deduper.Observe(h)
		if !isNew {
			in.mu.Lock()
			in.suppressed++
			in.mu.Unlock()
			continue
		}

		in.mu.Lock()
		in.published++
		in.mu.Unlock()

		in.logger.Debug().Str("symbol", story.Symbol).Str("headline", story.Headline).Msg("new story")
		in.bus.PublishNewsStory(story.ID, story.Symbol, story.Headline, story.Provider, story.Duplicates)
	}
}

// Stories returns the active story clusters
func (in *Ingestor) Stories() []Story {
	return in.deduper.Stories()
}

// Stats returns ingest counters for the status API
func (in *Ingestor) Stats() map[string]interface{} {
	in.mu.RLock()
	defer in.mu.RUnlock()

	return map[string]interface{}{
		"provider":   in.provider.Name(),
		"fetched":    in.fetched,
		"suppressed": in.suppressed,
		"published":  in.published,
		"clusters":   len(in.deduper.Stories()),
		"last_poll":  in.lastPoll,
		"last_error": in.lastError,
	}
}

// MockProvider emits canned headlines with occasional reworded repeats,
// for local runs without a real data feed.
type MockProvider struct {
	rng *rand.Rand
	mu  sync.Mutex
}

// NewMockProvider creates a mock news provider
func NewMockProvider() *MockProvider {
	return &MockProvider{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (m *MockProvider) Name() string {
	return "mock"
}

var mockTemplates = []string{
	"%s shares rise after quarterly earnings beat estimates",
	"%s announces new product line at annual event",
	"Analysts raise price target on %s following strong guidance",
	"%s faces regulatory scrutiny over recent acquisition",
}

// Fetch returns one or two headlines per symbol; roughly half are reruns of
// the previous template so dedup has something to fold.
func (m *MockProvider) Fetch(ctx context.Context, symbols []string) ([]Headline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Headline
	now := time.Now()
	for _, symbol := range symbols {
		tmpl := mockTemplates[m.rng.Intn(len(mockTemplates))]
		out = append(out, Headline{
			Provider:    "mock",
			Symbol:      symbol,
			Title:       fmt.Sprintf(tmpl, symbol),
			PublishedAt: now,
		})
	}
	return out, nil
}
