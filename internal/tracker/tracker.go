package tracker

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/codemem/codemem-mcp/pkg/types"
)

// Signal is one kind of recorded usage event
type Signal string

const (
	SignalAccess           Signal = "access"
	SignalEdit             Signal = "edit"
	SignalDiscussion       Signal = "discussion"
	SignalSearchAppearance Signal = "search_appearance"
	SignalSelection        Signal = "selection"
)

// signalIndex maps a signal to its counter slot
var signalIndex = map[Signal]int{
	SignalAccess:           0,
	SignalEdit:             1,
	SignalDiscussion:       2,
	SignalSearchAppearance: 3,
	SignalSelection:        4,
}

// Valid checks if the signal is known
func (s Signal) Valid() bool {
	_, ok := signalIndex[s]
	return ok
}

// Weights tunes the composite importance formula. The coefficients are
// configuration, not contract; the defaults below are what ranking was
// calibrated against.
type Weights struct {
	Recency   float64       `yaml:"recency"`
	Frequency float64       `yaml:"frequency"`
	Reference float64       `yaml:"reference"`
	HalfLife  time.Duration `yaml:"half_life"`
}

// DefaultWeights returns the default importance weighting
func DefaultWeights() Weights {
	return Weights{
		Recency:   0.35,
		Frequency: 0.35,
		Reference: 0.30,
		HalfLife:  7 * 24 * time.Hour,
	}
}

// Metric is a snapshot of one element's counters and derived scores
type Metric struct {
	Element           string
	AccessCount       int64
	EditCount         int64
	DiscussionCount   int64
	SearchAppearances int64
	SelectionCount    int64
	LastSeen          time.Time
	Recency           float64
	Frequency         float64
	Importance        float64
}

// metric holds live counters. Counters are atomic so the write path takes no
// lock; derived scores are only rewritten by Recalculate.
type metric struct {
	counters [5]atomic.Int64
	lastSeen atomic.Int64 // Unix nanos

	recency    atomicFloat
	frequency  atomicFloat
	importance atomicFloat
}

// atomicFloat stores a float64 via its bit pattern
type atomicFloat struct {
	bits atomic.Uint64
}

func (f *atomicFloat) Store(v float64) {
	f.bits.Store(math.Float64bits(v))
}

func (f *atomicFloat) Load() float64 {
	return math.Float64frombits(f.bits.Load())
}

// contextMetrics is the per-workspace partition
type contextMetrics struct {
	mu       sync.RWMutex
	elements map[string]*metric
	pairs    map[pairKey]*coEditPair
}

// Tracker converts raw usage signals into ranking inputs, partitioned per
// context.
type Tracker struct {
	mu       sync.RWMutex
	contexts map[string]*contextMetrics
	weights  Weights
	now      func() time.Time
}

// Option configures a Tracker
type Option func(*Tracker)

// WithWeights overrides the importance weighting
func WithWeights(w Weights) Option {
	return func(t *Tracker) { t.weights = w }
}

// withClock injects a clock for tests
func withClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// New creates a Tracker
func New(opts ...Option) *Tracker {
	t := &Tracker{
		contexts: make(map[string]*contextMetrics),
		weights:  DefaultWeights(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// forContext returns the partition for a context, creating it if needed
func (t *Tracker) forContext(contextName string) *contextMetrics {
	t.mu.RLock()
	cm, ok := t.contexts[contextName]
	t.mu.RUnlock()
	if ok {
		return cm
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if cm, ok = t.contexts[contextName]; ok {
		return cm
	}
	cm = &contextMetrics{
		elements: make(map[string]*metric),
		pairs:    make(map[pairKey]*coEditPair),
	}
	t.contexts[contextName] = cm
	return cm
}

// elementMetric returns the metric for an element, creating it if needed
func (cm *contextMetrics) elementMetric(element string) *metric {
	cm.mu.RLock()
	m, ok := cm.elements[element]
	cm.mu.RUnlock()
	if ok {
		return m
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()
	if m, ok = cm.elements[element]; ok {
		return m
	}
	m = &metric{}
	cm.elements[element] = m
	return m
}

// Record increments a signal counter for an element. Lock-free on the hot
// path once the element exists.
func (t *Tracker) Record(contextName, element string, sig Signal) error {
	if contextName == "" {
		return types.ErrContextRequired
	}
	idx, ok := signalIndex[sig]
	if !ok {
		return ErrUnknownSignal
	}

	m := t.forContext(contextName).elementMetric(element)
	m.counters[idx].Add(1)
	m.lastSeen.Store(t.now().UnixNano())
	return nil
}

// Importance returns the element's current composite score. Zero for
// elements never recalculated or never seen; eventual consistency is
// acceptable for ranking.
func (t *Tracker) Importance(contextName, element string) float64 {
	t.mu.RLock()
	cm, ok := t.contexts[contextName]
	t.mu.RUnlock()
	if !ok {
		return 0
	}

	cm.mu.RLock()
	m, ok := cm.elements[element]
	cm.mu.RUnlock()
	if !ok {
		return 0
	}
	return m.importance.Load()
}

// Recalculate recomputes recency, frequency, and composite importance for
// every tracked element in a context. This is the explicit bulk operation;
// it is never run inline on the signal write path.
func (t *Tracker) Recalculate(contextName string) int {
	t.mu.RLock()
	cm, ok := t.contexts[contextName]
	t.mu.RUnlock()
	if !ok {
		return 0
	}

	now := t.now()

	cm.mu.RLock()
	elements := make([]*metric, 0, len(cm.elements))
	for _, m := range cm.elements {
		elements = append(elements, m)
	}
	cm.mu.RUnlock()

	for _, m := range elements {
		recency := t.recencyScore(m, now)
		frequency := frequencyScore(m)
		reference := referenceScore(m)

		importance := t.weights.Recency*recency +
			t.weights.Frequency*frequency +
			t.weights.Reference*reference

		m.recency.Store(recency)
		m.frequency.Store(frequency)
		m.importance.Store(clamp01(importance))
	}
	return len(elements)
}

// recencyScore decays exponentially from the last-seen timestamp
func (t *Tracker) recencyScore(m *metric, now time.Time) float64 {
	last := m.lastSeen.Load()
	if last == 0 {
		return 0
	}
	age := now.Sub(time.Unix(0, last))
	if age < 0 {
		age = 0
	}
	halfLife := t.weights.HalfLife
	if halfLife <= 0 {
		halfLife = DefaultWeights().HalfLife
	}
	return math.Exp(-math.Ln2 * age.Seconds() / halfLife.Seconds())
}

// frequencyScore log-dampens the total signal count, saturating around 100
func frequencyScore(m *metric) float64 {
	var total int64
	for i := range m.counters {
		total += m.counters[i].Load()
	}
	return clamp01(math.Log1p(float64(total)) / math.Log1p(100))
}

// referenceScore log-dampens selections and search appearances, the signals
// that show other work actually pointing at this element
func referenceScore(m *metric) float64 {
	refs := m.counters[signalIndex[SignalSearchAppearance]].Load() +
		m.counters[signalIndex[SignalSelection]].Load()
	return clamp01(math.Log1p(float64(refs)) / math.Log1p(50))
}

// Snapshot returns a copy of one element's metric, for status surfaces
func (t *Tracker) Snapshot(contextName, element string) (Metric, bool) {
	t.mu.RLock()
	cm, ok := t.contexts[contextName]
	t.mu.RUnlock()
	if !ok {
		return Metric{}, false
	}

	cm.mu.RLock()
	m, ok := cm.elements[element]
	cm.mu.RUnlock()
	if !ok {
		return Metric{}, false
	}

	snap := Metric{
		Element:           element,
		AccessCount:       m.counters[0].Load(),
		EditCount:         m.counters[1].Load(),
		DiscussionCount:   m.counters[2].Load(),
		SearchAppearances: m.counters[3].Load(),
		SelectionCount:    m.counters[4].Load(),
		Recency:           m.recency.Load(),
		Frequency:         m.frequency.Load(),
		Importance:        m.importance.Load(),
	}
	if last := m.lastSeen.Load(); last != 0 {
		snap.LastSeen = time.Unix(0, last)
	}
	return snap, true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
