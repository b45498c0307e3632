package workflow

import (
	"errors"

	"recap/internal/store"
)

// ErrNotReady is returned by Run for sessions still collecting transcripts.
var ErrNotReady = errors.New("session not ready")

var stateRank = map[store.State]int{
	store.StateCollecting:       0,
	store.StateReadyToAggregate: 1,
	store.StateAggregated:       2,
	store.StateAnalyzed:         3,
	store.StateSummarized:       4,
	store.StateNotified:         5,
}

// reached reports whether current is at or beyond target.
func reached(current, target store.State) bool {
	return stateRank[current] >= stateRank[target]
}
