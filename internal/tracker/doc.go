// Package tracker converts raw usage signals into ranking inputs.
//
// Two families of state are kept, both partitioned per workspace context:
//
//   - Per-element importance metrics: monotonic counters for access, edit,
//     discussion, search-appearance, and selection signals. Increments are
//     atomic and lock-free; derived recency/frequency/importance scores in
//     [0,1] are only rewritten by the explicit bulk Recalculate, keeping the
//     write path cheap. Readers see eventually consistent scores, which is
//     acceptable for ranking.
//
//   - Per-pair co-edit metrics: a count of same-session co-edits per
//     unordered file pair, with a saturating strength score. Clusters derives
//     file groups by union-find over pairs above a strength threshold,
//     dropping groups smaller than three files as noise.
package tracker
