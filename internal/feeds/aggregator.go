package feeds

import (
	"context"
	"sync"
	"time"

	"github.com/willf/bloom"

	"github.com/rgsec/threatdeck/internal/config"
	"github.com/rgsec/threatdeck/internal/intel"
	"github.com/rgsec/threatdeck/internal/logging"
	"github.com/rgsec/threatdeck/internal/telemetry"
)

// SourceState tracks fetch health for a single source.
type SourceState struct {
	LastFetched  time.Time
	LastError    error
	ItemCount    int
	ConsecErrors int
}

// backoff returns how long a failing source sits out. Quadratic in the
// error streak, capped at 30 minutes.
func (s *SourceState) backoff() time.Duration {
	if s.ConsecErrors == 0 {
		return 0
	}
	d := time.Duration(s.ConsecErrors*s.ConsecErrors) * time.Minute
	if d > 30*time.Minute {
		d = 30 * time.Minute
	}
	return d
}

// Aggregator collects every registered source into one raw batch per poll.
// Items already seen in earlier polls are suppressed with a bloom filter.
// That is cross-poll duplicate suppression only, distinct from the ranking
// engine's within-run duplicate clustering which it must not disturb.
type Aggregator struct {
	mu      sync.Mutex
	sources []Source
	states  map[string]*SourceState
	seen    *bloom.BloomFilter
}

// NewAggregator creates an aggregator with no sources registered.
func NewAggregator() *Aggregator {
	return &Aggregator{
		states: make(map[string]*SourceState),
		// Sized for weeks of polling at feed volumes; ~1% false positive
		// rate just means the rare item is dropped as already-seen.
		seen: bloom.NewWithEstimates(200000, 0.01),
	}
}

// Add registers a source.
func (a *Aggregator) Add(src Source) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sources = append(a.sources, src)
	a.states[src.Name()] = &SourceState{}
}

// States returns a snapshot of per-source fetch health.
func (a *Aggregator) States() map[string]SourceState {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]SourceState, len(a.states))
	for name, st := range a.states {
		out[name] = *st
	}
	return out
}

// Collect fetches every source sequentially and returns the combined new
// raw items. A failing source logs, backs off and contributes nothing;
// collection itself never fails.
func (a *Aggregator) Collect(ctx context.Context) []intel.RawItem {
	a.mu.Lock()
	sources := make([]Source, len(a.sources))
	copy(sources, a.sources)
	a.mu.Unlock()

	var batch []intel.RawItem
	now := time.Now()

	for _, src := range sources {
		st := a.state(src.Name())
		srcLog := logging.WithPrefix(src.Name())

		if wait := st.backoff(); wait > 0 && now.Sub(st.LastFetched) < wait {
			srcLog.Debug("backing off", "errors", st.ConsecErrors)
			continue
		}

		raws, err := src.Fetch(ctx)

		a.mu.Lock()
		st.LastFetched = time.Now()
		st.LastError = err
		if err != nil {
			st.ConsecErrors++
			a.mu.Unlock()
			telemetry.FetchErrors.WithLabelValues(src.Name()).Inc()
			srcLog.Warn("fetch failed", "error", err)
			continue
		}
		st.ConsecErrors = 0
		a.mu.Unlock()

		fresh := a.filterSeen(raws)
		a.mu.Lock()
		st.ItemCount += len(fresh)
		a.mu.Unlock()

		telemetry.ItemsIngested.WithLabelValues(src.Name()).Add(float64(len(fresh)))
		srcLog.Info("fetched", "items", len(raws), "new", len(fresh))
		batch = append(batch, fresh...)
	}
	return batch
}

func (a *Aggregator) state(name string) *SourceState {
	a.mu.Lock()
	defer a.mu.Unlock()
	st, ok := a.states[name]
	if !ok {
		st = &SourceState{}
		a.states[name] = st
	}
	return st
}

// filterSeen drops records whose identity key already passed through in an
// earlier poll. The key mirrors the normalizer's ID fallback chain.
func (a *Aggregator) filterSeen(raws []intel.RawItem) []intel.RawItem {
	a.mu.Lock()
	defer a.mu.Unlock()

	fresh := make([]intel.RawItem, 0, len(raws))
	for _, raw := range raws {
		key := raw.ID
		if key == "" {
			key = raw.URL
		}
		if key == "" {
			key = raw.Title
		}
		if key == "" {
			// No identity at all; let it through, the normalizer will
			// mint a UUID.
			fresh = append(fresh, raw)
			continue
		}
		if a.seen.TestAndAdd([]byte(key)) {
			continue
		}
		fresh = append(fresh, raw)
	}
	return fresh
}

// Default wires the standard source set from config: NVD CVEs, CISA
// advisories, Cisco Talos, MSRC, the ATT&CK taxonomy and (with a key)
// ThreatFox IoCs.
func Default(cfg *config.Config) *Aggregator {
	client := NewClient(time.Duration(cfg.Feeds.RequestTimeoutS) * time.Second)

	agg := NewAggregator()
	agg.Add(NewNVDSource(client, "", cfg.Feeds.NVDLimit))
	agg.Add(NewRSSSource(client, "CISA", "https://www.cisa.gov/cybersecurity-advisories/all.xml", cfg.Feeds.RSSLimit, false))
	agg.Add(NewRSSSource(client, "Cisco Talos", "http://feeds.feedburner.com/feedburner/Talos", cfg.Feeds.RSSLimit, false))
	agg.Add(NewRSSSource(client, "MSRC", "https://msrc.microsoft.com/update-guide/rss", cfg.Feeds.RSSLimit, true))
	agg.Add(NewAttackSource(client, "", cfg.Feeds.AttackLimit))
	agg.Add(NewThreatFoxSource(client, "", cfg.Feeds.ThreatFoxKey, cfg.Feeds.ThreatFoxLimit, cfg.Feeds.ThreatFoxDays))
	return agg
}
