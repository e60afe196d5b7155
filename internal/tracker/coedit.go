package tracker

import (
	"errors"
	"math"
	"sort"

	"github.com/codemem/codemem-mcp/pkg/types"
)

// Tracker errors
var (
	ErrUnknownSignal = errors.New("unknown signal")
	ErrSamePair      = errors.New("co-edit requires two distinct files")
)

const (
	// coEditSaturation controls how fast strength approaches 1
	coEditSaturation = 5.0

	// ClusterThreshold is the minimum pair strength for cluster membership
	ClusterThreshold = 0.3

	// MinClusterSize filters noise from incidental co-edits
	MinClusterSize = 3
)

// pairKey is an order-independent file pair key
type pairKey struct {
	a, b string
}

func makePairKey(fileA, fileB string) pairKey {
	if fileA > fileB {
		fileA, fileB = fileB, fileA
	}
	return pairKey{a: fileA, b: fileB}
}

// coEditPair tracks one unordered file pair
type coEditPair struct {
	count       int64
	lastSession string
}

// CoEditStat is a reportable pair with its derived strength
type CoEditStat struct {
	FileA    string
	FileB    string
	Count    int64
	Strength float64
}

// coEditStrength saturates toward 1 as the count grows, so no hard cap is
// needed
func coEditStrength(count int64) float64 {
	if count <= 0 {
		return 0
	}
	return 1 - math.Exp(-float64(count)/coEditSaturation)
}

// RecordCoEdit increments the pair's co-edit count for a session. The pair
// map takes the partition lock; co-edits are rare next to reads so this is
// not a hot path.
func (t *Tracker) RecordCoEdit(contextName, fileA, fileB, sessionID string) error {
	if contextName == "" {
		return types.ErrContextRequired
	}
	if fileA == "" || fileB == "" || fileA == fileB {
		return ErrSamePair
	}

	cm := t.forContext(contextName)
	key := makePairKey(fileA, fileB)

	cm.mu.Lock()
	defer cm.mu.Unlock()

	pair, ok := cm.pairs[key]
	if !ok {
		pair = &coEditPair{}
		cm.pairs[key] = pair
	}
	pair.count++
	pair.lastSession = sessionID
	return nil
}

// CoEdits reports every pair touching the given file, strongest first. An
// empty file returns all pairs in the context.
func (t *Tracker) CoEdits(contextName, file string) []CoEditStat {
	t.mu.RLock()
	cm, ok := t.contexts[contextName]
	t.mu.RUnlock()
	if !ok {
		return nil
	}

	cm.mu.RLock()
	defer cm.mu.RUnlock()

	var stats []CoEditStat
	for key, pair := range cm.pairs {
		if file != "" && key.a != file && key.b != file {
			continue
		}
		stats = append(stats, CoEditStat{
			FileA:    key.a,
			FileB:    key.b,
			Count:    pair.count,
			Strength: coEditStrength(pair.count),
		})
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Strength != stats[j].Strength {
			return stats[i].Strength > stats[j].Strength
		}
		return stats[i].FileA < stats[j].FileA
	})
	return stats
}

// Clusters groups files whose pairwise co-edit strength exceeds the
// threshold, merging transitively via union-find. Groups below
// MinClusterSize are dropped as noise.
func (t *Tracker) Clusters(contextName string) [][]string {
	t.mu.RLock()
	cm, ok := t.contexts[contextName]
	t.mu.RUnlock()
	if !ok {
		return nil
	}

	cm.mu.RLock()
	type link struct{ a, b string }
	var links []link
	for key, pair := range cm.pairs {
		if coEditStrength(pair.count) >= ClusterThreshold {
			links = append(links, link{a: key.a, b: key.b})
		}
	}
	cm.mu.RUnlock()

	uf := newUnionFind()
	for _, l := range links {
		uf.union(l.a, l.b)
	}

	groups := make(map[string][]string)
	for _, file := range uf.members() {
		root := uf.find(file)
		groups[root] = append(groups[root], file)
	}

	var clusters [][]string
	for _, group := range groups {
		if len(group) < MinClusterSize {
			continue
		}
		sort.Strings(group)
		clusters = append(clusters, group)
	}

	sort.Slice(clusters, func(i, j int) bool {
		return clusters[i][0] < clusters[j][0]
	})
	return clusters
}

// unionFind is a path-compressing disjoint set over file names
type unionFind struct {
	parent map[string]string
}

func newUnionFind() *unionFind {
	return &unionFind{parent: make(map[string]string)}
}

func (u *unionFind) find(x string) string {
	p, ok := u.parent[x]
	if !ok {
		u.parent[x] = x
		return x
	}
	if p == x {
		return x
	}
	root := u.find(p)
	u.parent[x] = root
	return root
}

func (u *unionFind) union(a, b string) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[ra] = rb
	}
}

func (u *unionFind) members() []string {
	names := make([]string, 0, len(u.parent))
	for name := range u.parent {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
