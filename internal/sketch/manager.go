package sketch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// Store is the key-value persistence boundary for sketches. Get returns
// ErrNotFound for keys that were never written.
type Store interface {
	Get(ctx context.Context, name string) ([]byte, error)
	Set(ctx context.Context, name string, data []byte) error
}

// ErrNotFound is returned by Store.Get for missing keys.
var ErrNotFound = errors.New("sketch: not found")

// Persistence keys. One logical namespace per sketch.
const (
	KeyURLBloom    = "sketch:urls"
	KeyTemplateHLL = "sketch:templates"
	KeyColorHLL    = "sketch:colors"
	KeyCSSPatterns = "sketch:patterns"
)

// Default sizing. The URL filter is dimensioned for a full catalog crawl;
// template IDs need more precision than colors or CSS patterns because
// their cardinality drives dashboard numbers.
const (
	DefaultBloomExpectedURLs = 50000
	DefaultBloomFPRate       = 0.01

	TemplatePrecision uint8 = 14
	ColorPrecision    uint8 = 12
	PatternPrecision  uint8 = 12
)

// Manager owns the URL Bloom filter and the three cardinality sketches and
// batches their persistence behind a dirty flag. It is safe for concurrent
// use within one process; separate processes each own an in-memory copy and
// reconcile through Save's read-merge-write.
type Manager struct {
	mu    sync.Mutex
	store Store

	bloomExpected int
	bloomFPRate   float64

	urls      *Bloom
	templates *HLL
	colors    *HLL
	patterns  *HLL
	dirty     bool

	// urlBaseline is the Bloom count carried by the persisted filter when it
	// was last loaded or flushed. Save uses it to write only the inserts made
	// since then on top of whatever is persisted, keeping repeated flushes
	// idempotent on the count.
	urlBaseline uint64
}

// NewManager creates a Manager over the given store. Call Init before use.
func NewManager(store Store) *Manager {
	return &Manager{
		store:         store,
		bloomExpected: DefaultBloomExpectedURLs,
		bloomFPRate:   DefaultBloomFPRate,
	}
}

// SetBloomSizing overrides the default URL filter dimensions. Only affects
// filters created on an Init miss; persisted filters keep their sizing.
// Call before Init.
func (m *Manager) SetBloomSizing(expectedItems int, fpRate float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bloomExpected = expectedItems
	m.bloomFPRate = fpRate
}

// Init loads each sketch from the store, constructing a fresh one with
// default sizing on a miss. A fresh sketch marks the state dirty so the
// first Save writes it out.
func (m *Manager) Init(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bloom, created, err := m.loadBloom(ctx, KeyURLBloom)
	if err != nil {
		return err
	}
	m.urls = bloom
	m.urlBaseline = bloom.Count()
	m.dirty = m.dirty || created

	for _, entry := range []struct {
		key       string
		precision uint8
		dst       **HLL
	}{
		{KeyTemplateHLL, TemplatePrecision, &m.templates},
		{KeyColorHLL, ColorPrecision, &m.colors},
		{KeyCSSPatterns, PatternPrecision, &m.patterns},
	} {
		hll, created, err := m.loadHLL(ctx, entry.key, entry.precision)
		if err != nil {
			return err
		}
		*entry.dst = hll
		m.dirty = m.dirty || created
	}

	log.Info().
		Uint64("bloom_count", m.urls.Count()).
		Uint64("templates", m.templates.Count()).
		Uint64("colors", m.colors.Count()).
		Uint64("patterns", m.patterns.Count()).
		Bool("dirty", m.dirty).
		Msg("Sketch manager initialized")
	return nil
}

func (m *Manager) loadBloom(ctx context.Context, key string) (*Bloom, bool, error) {
	data, err := m.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return NewBloom(m.bloomExpected, m.bloomFPRate), true, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load %s: %w", key, err)
	}

	b := &Bloom{}
	if err := b.UnmarshalBinary(data); err != nil {
		return nil, false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return b, false, nil
}

func (m *Manager) loadHLL(ctx context.Context, key string, precision uint8) (*HLL, bool, error) {
	data, err := m.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		h, newErr := NewHLL(precision)
		return h, true, newErr
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load %s: %w", key, err)
	}

	h := &HLL{}
	if err := h.UnmarshalBinary(data); err != nil {
		return nil, false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return h, false, nil
}

// MaybeIndexed reports whether the URL might already be indexed. False is a
// hard guarantee it was never marked, letting callers skip the definitive
// existence check entirely. True is only a hint; callers must confirm
// against the document store before trusting it.
func (m *Manager) MaybeIndexed(url string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.urls.Contains(NormalizeURL(url))
}

// MarkIndexed records the URL in the Bloom filter.
func (m *Manager) MarkIndexed(url string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.urls.Insert(NormalizeURL(url))
	m.dirty = true
}

// TrackTemplate feeds a template ID into the template cardinality sketch.
func (m *Manager) TrackTemplate(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates.Add(id)
	m.dirty = true
}

// TrackColor feeds a color value into the color cardinality sketch.
func (m *Manager) TrackColor(color string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.colors.Add(strings.ToLower(color))
	m.dirty = true
}

// TrackPattern feeds a CSS fingerprint into the pattern cardinality sketch.
func (m *Manager) TrackPattern(fingerprint string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patterns.Add(fingerprint)
	m.dirty = true
}

// Stats summarizes the live sketches.
type Stats struct {
	IndexedURLs     uint64  `json:"indexedUrls"`
	BloomFillRatio  float64 `json:"bloomFillRatio"`
	BloomFPRate     float64 `json:"bloomFpRate"`
	UniqueTemplates uint64  `json:"uniqueTemplates"`
	UniqueColors    uint64  `json:"uniqueColors"`
	UniquePatterns  uint64  `json:"uniquePatterns"`
}

// Snapshot returns current sketch statistics.
func (m *Manager) Snapshot() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		IndexedURLs:     m.urls.Count(),
		BloomFillRatio:  m.urls.FillRatio(),
		BloomFPRate:     m.urls.EstimatedFPRate(),
		UniqueTemplates: m.templates.Count(),
		UniqueColors:    m.colors.Count(),
		UniquePatterns:  m.patterns.Count(),
	}
}

// Save persists all four sketches if anything changed since the last flush.
// Persisted state is a merge target, not an overwrite target: each sketch
// is first merged with whatever another instance wrote in the meantime
// (bitwise OR for the Bloom filter, register max for the HLLs, both
// commutative and idempotent), then written back. A plain overwrite here
// would silently drop concurrent updates.
func (m *Manager) Save(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.dirty {
		return nil
	}

	persisted, _, err := m.loadBloom(ctx, KeyURLBloom)
	if err != nil {
		return err
	}
	inserts := m.urls.Count() - m.urlBaseline
	if mergeErr := m.urls.Merge(persisted); mergeErr != nil {
		log.Warn().Err(mergeErr).Msg("Persisted URL filter has incompatible sizing, overwriting")
	} else {
		// Merge sums both counts, but the persisted count was already part
		// of ours at load time. Write back persisted plus our new inserts so
		// the count stays idempotent under repeated flushes.
		m.urls.count = persisted.Count() + inserts
	}
	if err := m.writeSketch(ctx, KeyURLBloom, m.urls); err != nil {
		return err
	}
	m.urlBaseline = m.urls.Count()

	for _, entry := range []struct {
		key       string
		precision uint8
		sketch    *HLL
	}{
		{KeyTemplateHLL, TemplatePrecision, m.templates},
		{KeyColorHLL, ColorPrecision, m.colors},
		{KeyCSSPatterns, PatternPrecision, m.patterns},
	} {
		persisted, _, err := m.loadHLL(ctx, entry.key, entry.precision)
		if err != nil {
			return err
		}
		if mergeErr := entry.sketch.Merge(persisted); mergeErr != nil {
			log.Warn().Err(mergeErr).Str("key", entry.key).Msg("Persisted sketch has incompatible precision, overwriting")
		}
		if err := m.writeSketch(ctx, entry.key, entry.sketch); err != nil {
			return err
		}
	}

	m.dirty = false
	log.Debug().Msg("Sketches flushed")
	return nil
}

type binaryMarshaler interface {
	MarshalBinary() ([]byte, error)
}

func (m *Manager) writeSketch(ctx context.Context, key string, sketch binaryMarshaler) error {
	data, err := sketch.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := m.store.Set(ctx, key, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// NormalizeURL canonicalizes a URL for dedup purposes: scheme and www
// prefix stripped, trailing slash removed, lowercased.
func NormalizeURL(url string) string {
	u := strings.ToLower(strings.TrimSpace(url))
	u = strings.TrimPrefix(u, "https://")
	u = strings.TrimPrefix(u, "http://")
	u = strings.TrimPrefix(u, "www.")
	u = strings.TrimSuffix(u, "/")
	return u
}
