package frontier

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ranamudassir31/webpulse-ai/internal/domain"
)

// DefaultPerHostLimit caps concurrent in-flight fetches to a single host.
const DefaultPerHostLimit = 2

// ErrNotInFlight is returned when marking an entry that is not currently in flight.
var ErrNotInFlight = errors.New("frontier: entry not in flight")

// Config bounds one job's frontier.
type Config struct {
	MaxPages       int
	MaxDepth       int
	SameDomainOnly bool
	PerHostLimit   int
}

// WithDefaults returns a copy of the config with zero values replaced by defaults.
func (c Config) WithDefaults() Config {
	if c.MaxPages <= 0 {
		c.MaxPages = domain.DefaultMaxPages
	}
	if c.MaxDepth < 0 {
		c.MaxDepth = 0
	}
	if c.PerHostLimit <= 0 {
		c.PerHostLimit = DefaultPerHostLimit
	}
	return c
}

// Stats is a point-in-time view of a frontier.
type Stats struct {
	Admitted int
	Pending  int
	InFlight int
	Done     int
	Failed   int
	MaxDepth int
}

// Frontier is the job-scoped set of URLs discovered for crawling.
// All mutation and the per-host counters are guarded by a single mutex.
type Frontier struct {
	mu         sync.Mutex
	cfg        Config
	seed       string
	seedDomain string
	entries    map[string]*domain.FrontierEntry
	pending    []*domain.FrontierEntry
	hostLoad   map[string]int
	stats      Stats
	seq        int
	changed    chan struct{}
}

// New creates a frontier for seedURL and admits the seed at depth 0.
func New(seedURL string, cfg Config) (*Frontier, error) {
	normalized, err := NormalizeURL(seedURL)
	if err != nil {
		return nil, fmt.Errorf("frontier seed: %w", err)
	}

	host, err := ExtractHost(normalized)
	if err != nil {
		return nil, fmt.Errorf("frontier seed: %w", err)
	}

	f := &Frontier{
		cfg:        cfg.WithDefaults(),
		seed:       normalized,
		seedDomain: RegistrableDomain(host),
		entries:    make(map[string]*domain.FrontierEntry),
		hostLoad:   make(map[string]int),
		changed:    make(chan struct{}),
	}
	f.Admit(normalized, 0, "")

	return f, nil
}

// Seed returns the normalized seed URL.
func (f *Frontier) Seed() string {
	return f.seed
}

// SeedDomain returns the registrable domain of the seed.
func (f *Frontier) SeedDomain() string {
	return f.seedDomain
}

// IsInternal reports whether rawURL shares the seed's registrable domain.
func (f *Frontier) IsInternal(rawURL string) bool {
	d, err := URLRegistrableDomain(rawURL)
	return err == nil && d == f.seedDomain
}

// Admit normalizes rawURL and enqueues it as pending. It returns false, without
// error, when the URL is invalid, already admitted, deeper than the depth limit,
// over the page budget, or off-site while same-domain crawling is enforced.
func (f *Frontier) Admit(rawURL string, depth int, parent string) bool {
	normalized, err := NormalizeURL(rawURL)
	if err != nil {
		return false
	}
	host, err := ExtractHost(normalized)
	if err != nil {
		return false
	}

	if depth < 0 || depth > f.cfg.MaxDepth {
		return false
	}
	if f.cfg.SameDomainOnly && RegistrableDomain(host) != f.seedDomain {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, seen := f.entries[normalized]; seen {
		return false
	}
	if f.stats.Admitted >= f.cfg.MaxPages {
		return false
	}

	entry := &domain.FrontierEntry{
		URL:       normalized,
		Host:      host,
		Depth:     depth,
		ParentURL: parent,
		Seq:       f.seq,
		State:     domain.VisitPending,
	}
	f.seq++
	f.entries[normalized] = entry
	f.stats.Admitted++
	f.stats.Pending++

	// Keep pending ordered by (depth, seq).
	i := sort.Search(len(f.pending), func(i int) bool {
		p := f.pending[i]
		return p.Depth > depth || (p.Depth == depth && p.Seq > entry.Seq)
	})
	f.pending = append(f.pending, nil)
	copy(f.pending[i+1:], f.pending[i:])
	f.pending[i] = entry

	f.notifyLocked()

	return true
}

// NextBatch returns up to n pending entries in breadth-first order and marks
// them in flight. Entries whose host is at the in-flight cap are skipped but
// keep their position.
func (f *Frontier) NextBatch(n int) []domain.FrontierEntry {
	if n <= 0 {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	batch := make([]domain.FrontierEntry, 0, n)
	kept := f.pending[:0]

	for _, entry := range f.pending {
		if len(batch) < n && f.hostLoad[entry.Host] < f.cfg.PerHostLimit {
			entry.State = domain.VisitInFlight
			f.hostLoad[entry.Host]++
			f.stats.Pending--
			f.stats.InFlight++
			batch = append(batch, *entry)
			continue
		}
		kept = append(kept, entry)
	}
	for i := len(kept); i < len(f.pending); i++ {
		f.pending[i] = nil
	}
	f.pending = kept

	return batch
}

// MarkDone records a successful visit and releases the host slot.
func (f *Frontier) MarkDone(rawURL string) error {
	return f.finish(rawURL, domain.VisitDone)
}

// MarkFailed records a failed visit and releases the host slot.
func (f *Frontier) MarkFailed(rawURL string) error {
	return f.finish(rawURL, domain.VisitFailed)
}

func (f *Frontier) finish(rawURL string, state domain.VisitState) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry, ok := f.entries[rawURL]
	if !ok {
		if normalized, err := NormalizeURL(rawURL); err == nil {
			entry, ok = f.entries[normalized]
		}
	}
	if !ok || entry.State != domain.VisitInFlight {
		return fmt.Errorf("%w: %s", ErrNotInFlight, rawURL)
	}

	entry.State = state
	f.stats.InFlight--
	if state == domain.VisitDone {
		f.stats.Done++
	} else {
		f.stats.Failed++
	}
	if entry.Depth > f.stats.MaxDepth {
		f.stats.MaxDepth = entry.Depth
	}

	f.hostLoad[entry.Host]--
	if f.hostLoad[entry.Host] <= 0 {
		delete(f.hostLoad, entry.Host)
	}

	f.notifyLocked()

	return nil
}

// IsExhausted reports whether no entry is pending or in flight.
func (f *Frontier) IsExhausted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.stats.Pending == 0 && f.stats.InFlight == 0
}

// Stats returns counts per visit state and the deepest visited depth.
func (f *Frontier) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.stats
}

// Changed returns a channel closed on the next frontier mutation.
func (f *Frontier) Changed() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.changed
}

// Entry returns a copy of the entry admitted under the normalized URL.
func (f *Frontier) Entry(normalizedURL string) (domain.FrontierEntry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry, ok := f.entries[normalizedURL]
	if !ok {
		return domain.FrontierEntry{}, false
	}
	return *entry, true
}

func (f *Frontier) notifyLocked() {
	close(f.changed)
	f.changed = make(chan struct{})
}
