package news

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/SCPrime/ai-Trader-sub001/internal/events"
)

// TestTokenize verifies normalization drops punctuation and stopwords
func TestTokenize(t *testing.T) {
	tokens := Tokenize("Apple's Shares Rise After Earnings Beat, Say Analysts!")

	for _, want := range []string{"apple", "shares", "rise", "earnings", "beat", "analysts"} {
		if _, ok := tokens[want]; !ok {
			t.Errorf("missing token %q in %v", want, tokens)
		}
	}
	for _, banned := range []string{"after", "say", "s"} {
		if _, ok := tokens[banned]; ok {
			t.Errorf("token %q should have been dropped", banned)
		}
	}
}

// TestJaccard verifies the similarity measure
func TestJaccard(t *testing.T) {
	a := Tokenize("Apple shares rise on earnings beat")
	b := Tokenize("Apple shares rise on earnings beat")
	if sim := Jaccard(a, b); sim != 1.0 {
		t.Errorf("identical headlines: sim = %.2f, want 1.0", sim)
	}

	c := Tokenize("Fed holds interest rates steady in December meeting")
	if sim := Jaccard(a, c); sim > 0.1 {
		t.Errorf("unrelated headlines: sim = %.2f, want ~0", sim)
	}

	if sim := Jaccard(a, map[string]struct{}{}); sim != 0 {
		t.Errorf("empty set: sim = %.2f, want 0", sim)
	}
}

// TestObserveClustersSimilarHeadlines verifies reworded repeats fold into
// one story
func TestObserveClustersSimilarHeadlines(t *testing.T) {
	d := NewDeduper(0.5, time.Hour)

	first, isNew := d.Observe(Headline{Provider: "wire-a", Symbol: "AAPL",
		Title: "Apple shares rise after quarterly earnings beat estimates"})
	if !isNew {
		t.Fatal("first headline must create a story")
	}

	second, isNew := d.Observe(Headline{Provider: "wire-b", Symbol: "AAPL",
		Title: "Apple shares rise after earnings beat analyst estimates"})
	if isNew {
		t.Fatal("reworded repeat should fold into the existing story")
	}
	if second.ID != first.ID {
		t.Errorf("folded into story %s, want %s", second.ID, first.ID)
	}
	if second.Duplicates != 1 {
		t.Errorf("Duplicates = %d, want 1", second.Duplicates)
	}

	// Representative is the earliest headline
	if second.Headline != first.Headline {
		t.Errorf("representative changed to %q", second.Headline)
	}
}

// TestObserveDistinctHeadlines verifies unrelated headlines stay separate
func TestObserveDistinctHeadlines(t *testing.T) {
	d := NewDeduper(0.5, time.Hour)

	d.Observe(Headline{Symbol: "AAPL", Title: "Apple shares rise after earnings beat"})
	_, isNew := d.Observe(Headline{Symbol: "AAPL", Title: "Apple faces antitrust lawsuit in Europe"})
	if !isNew {
		t.Error("unrelated headline should create its own story")
	}

	if len(d.Stories()) != 2 {
		t.Errorf("Stories = %d, want 2", len(d.Stories()))
	}
}

// TestObserveCrossSymbolMatch verifies the global pool catches untagged
// re-runs of a tagged story
func TestObserveCrossSymbolMatch(t *testing.T) {
	d := NewDeduper(0.5, time.Hour)

	d.Observe(Headline{Symbol: "AAPL", Title: "Apple shares rise after quarterly earnings beat estimates"})
	_, isNew := d.Observe(Headline{Symbol: "", Title: "Apple shares rise after quarterly earnings beat estimates"})
	if isNew {
		t.Error("identical untagged headline should fold into the tagged story")
	}
}

// TestCleanupPrunesIdleClusters verifies retention-based pruning
func TestCleanupPrunesIdleClusters(t *testing.T) {
	d := NewDeduper(0.5, time.Hour)

	d.Observe(Headline{Symbol: "AAPL", Title: "Apple shares rise after earnings beat"})
	d.Observe(Headline{Symbol: "TSLA", Title: "Tesla deliveries hit record high this quarter"})

	// Backdate one cluster past retention
	d.mu.Lock()
	for _, story := range d.stories {
		if story.Symbol == "AAPL" {
			story.LastSeen = time.Now().Add(-2 * time.Hour)
		}
	}
	d.mu.Unlock()

	if removed := d.Cleanup(); removed != 1 {
		t.Errorf("Cleanup removed %d, want 1", removed)
	}
	stories := d.Stories()
	if len(stories) != 1 || stories[0].Symbol != "TSLA" {
		t.Errorf("Stories = %v, want only TSLA", stories)
	}
}

// TestIngestorPublishesFirstSeenOnly verifies events fire once per story
func TestIngestorPublishesFirstSeenOnly(t *testing.T) {
	bus := events.NewBus()
	published := make(chan events.Event, 8)
	bus.Subscribe(events.EventNewsStory, func(e events.Event) { published <- e })

	provider := &scriptedProvider{headlines: []Headline{
		{Provider: "wire-a", Symbol: "AAPL", Title: "Apple shares rise after quarterly earnings beat estimates"},
		{Provider: "wire-b", Symbol: "AAPL", Title: "Apple shares rise after earnings beat analyst estimates"},
	}}

	in := NewIngestor(Config{
		PollInterval:        time.Minute,
		SimilarityThreshold: 0.5,
		Retention:           time.Hour,
		Symbols:             []string{"AAPL"},
	}, provider, bus, zerolog.Nop())

	in.poll(context.Background())

	select {
	case <-published:
	case <-time.After(time.Second):
		t.Fatal("expected one story event")
	}
	select {
	case e := <-published:
		t.Fatalf("unexpected second event: %v", e)
	case <-time.After(100 * time.Millisecond):
	}

	stats := in.Stats()
	if stats["suppressed"].(int64) != 1 {
		t.Errorf("suppressed = %v, want 1", stats["suppressed"])
	}
}

type scriptedProvider struct {
	headlines []Headline
}

func (s *scriptedProvider) Name() string { return "scripted" }

func (s *scriptedProvider) Fetch(ctx context.Context, symbols []string) ([]Headline, error) {
	return s.headlines, nil
}
