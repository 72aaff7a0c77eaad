// Package news clusters headlines by string similarity so downstream
// consumers see each story once, not once per wire service that ran it.
package news

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Headline is a raw item from a news provider
type Headline struct {
	Provider    string    `json:"provider"`
	Symbol      string    `json:"symbol"`
	Title       string    `json:"title"`
	URL         string    `json:"url,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// Story is a cluster of similar headlines. The representative headline is
// the earliest one seen.
type Story struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Headline   string    `json:"headline"`
	Provider   string    `json:"provider"`
	FirstSeen  time.Time `json:"first_seen"`
	LastSeen   time.Time `json:"last_seen"`
	Duplicates int       `json:"duplicates"`

	tokens map[string]struct{}
}

// Deduper assigns headlines to story clusters by token-set Jaccard
// similarity. Clusters for the headline's own symbol are tried before the
// global pool, so symbol-tagged re-runs collapse first.
type Deduper struct {
	threshold float64
	retention time.Duration
	stories   map[string]*Story   // story ID -> story
	bySymbol  map[string][]string // symbol -> story IDs
	mu        sync.Mutex
}

// NewDeduper creates a deduper. threshold is the minimum Jaccard similarity
// for two headlines to be the same story.
func NewDeduper(threshold float64, retention time.Duration) *Deduper {
	return &Deduper{
		threshold: threshold,
		retention: retention,
		stories:   make(map[string]*Story),
		bySymbol:  make(map[string][]string),
	}
}

// Observe assigns a headline to a cluster. It returns the story and whether
// this headline created it (true) or was folded into an existing one.
func (d *Deduper) Observe(h Headline) (Story, bool) {
	tokens := Tokenize(h.Title)
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	// Symbol-local clusters first, then everything else
	if id := d.bestMatchLocked(tokens, d.bySymbol[h.Symbol]); id != "" {
		return d.foldLocked(id, now), false
	}
	if id := d.bestMatchLocked(tokens, d.allIDsLocked()); id != "" {
		return d.foldLocked(id, now), false
	}

	story := &Story{
		ID:        uuid.New().String(),
		Symbol:    h.Symbol,
		Headline:  h.Title,
		Provider:  h.Provider,
		FirstSeen: now,
		LastSeen:  now,
		tokens:    tokens,
	}
	d.stories[story.ID] = story
	d.bySymbol[h.Symbol] = append(d.bySymbol[h.Symbol], story.ID)
	return *story, true
}

// Cleanup prunes clusters idle past the retention window and returns how
// many were removed
func (d *Deduper) Cleanup() int {
	cutoff := time.Now().Add(-d.retention)

	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for id, story := range d.stories {
		if story.LastSeen.Before(cutoff) {
			delete(d.stories, id)
			removed++
		}
	}
	if removed > 0 {
		for symbol, ids := range d.bySymbol {
			kept := ids[:0]
			for _, id := range ids {
				if _, ok := d.stories[id]; ok {
					kept = append(kept, id)
				}
			}
			if len(kept) == 0 {
				delete(d.bySymbol, symbol)
			} else {
				d.bySymbol[symbol] = kept
			}
		}
	}
	return removed
}

// Stories returns a snapshot of active clusters
func (d *Deduper) Stories() []Story {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]Story, 0, len(d.stories))
	for _, story := range d.stories {
		out = append(out, *story)
	}
	return out
}

func (d *Deduper) bestMatchLocked(tokens map[string]struct{}, ids []string) string {
	bestID := ""
	bestSim := 0.0
	for _, id := range ids {
		story, ok := d.stories[id]
		if !ok {
			continue
		}
		if sim := Jaccard(tokens, story.tokens); sim >= d.threshold && sim > bestSim {
			bestID = id
			bestSim = sim
		}
	}
	return bestID
}

func (d *Deduper) allIDsLocked() []string {
	ids := make([]string, 0, len(d.stories))
	for id := range d.stories {
		ids = append(ids, id)
	}
	return ids
}

func (d *Deduper) foldLocked(id string, now time.Time) Story {
	story := d.stories[id]
	story.Duplicates++
	story.LastSeen = now
	return *story
}

// stopwords carry no signal for headline similarity
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "as": {}, "at": {}, "by": {}, "for": {},
	"from": {}, "in": {}, "is": {}, "it": {}, "of": {}, "on": {}, "or": {},
	"the": {}, "to": {}, "with": {}, "after": {}, "amid": {}, "over": {},
	"says": {}, "say": {}, "its": {}, "their": {}, "has": {}, "have": {},
}

// Tokenize normalizes a headline into its significant token set
func Tokenize(title string) map[string]struct{} {
	tokens := make(map[string]struct{})

	var b strings.Builder
	flush := func() {
		if b.Len() == 0 {
			return
		}
		word := b.String()
		b.Reset()
		if len(word) < 2 {
			return
		}
		if _, skip := stopwords[word]; skip {
			return
		}
		tokens[word] = struct{}{}
	}

	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			flush()
		}
	}
	flush()

	return tokens
}

// Jaccard returns intersection-over-union for two token sets
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}

	intersection := 0
	for token := range small {
		if _, ok := large[token]; ok {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
