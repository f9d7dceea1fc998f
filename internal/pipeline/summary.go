package pipeline

import (
	"sort"

	"koosseis/internal"
)

type OutcomeCount struct {
	Outcome string
	Kind    string
	Count   int
}

// CountOutcomes tallies a checkpoint: successes first (split by whether the
// sink stored them), then failures by kind in name order.
func CountOutcomes(results []internal.Success, failed []internal.Failure) []OutcomeCount {
	var stored, unstored int
	for _, s := range results {
		if s.PersistError != "" {
			unstored++
		} else {
			stored++
		}
	}

	var out []OutcomeCount
	if stored > 0 {
		out = append(out, OutcomeCount{Outcome: "success", Count: stored})
	}
	if unstored > 0 {
		out = append(out, OutcomeCount{Outcome: "success", Kind: "persist_error", Count: unstored})
	}

	byKind := map[internal.FailureKind]int{}
	for _, f := range failed {
		byKind[f.Kind]++
	}
	kinds := make([]string, 0, len(byKind))
	for k := range byKind {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		out = append(out, OutcomeCount{Outcome: "failure", Kind: k, Count: byKind[internal.FailureKind(k)]})
	}
	return out
}
