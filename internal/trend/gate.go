// Package trend decides when the category trend table is refreshed and
// computes its rows.
package trend

import (
	"time"
)

// DefaultTimezone is the zone in which "same calendar day" is evaluated.
const DefaultTimezone = "Europe/Warsaw"

// MinRefreshInterval is the minimum age of the last trend load before
// another append is allowed.
const MinRefreshInterval = 24 * time.Hour

// Decision reasons.
const (
	ReasonNoFreshSource  = "no_source_updated_today"
	ReasonTooRecent      = "trend_loaded_within_24h"
	ReasonFirstLoad      = "trend_table_missing"
	ReasonIntervalPassed = "trend_older_than_24h"
)

// Decision is the outcome of the gate.
type Decision struct {
	Refresh bool
	Reason  string
}

// Gate evaluates the refresh predicate.
type Gate struct {
	Location *time.Location
}

// NewGate creates a gate for the named IANA zone; an empty name uses
// DefaultTimezone.
func NewGate(timezone string) (*Gate, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, err
	}
	return &Gate{Location: loc}, nil
}

// Decide refreshes iff at least one source was updated on now's calendar day
// and the trend table was never loaded or was last loaded at least
// MinRefreshInterval ago.
func (g *Gate) Decide(now time.Time, lastLoad time.Time, loaded bool, sourceUpdated []time.Time) Decision {
	fresh := false
	for _, u := range sourceUpdated {
		if g.sameDay(u, now) {
			fresh = true
			break
		}
	}
	if !fresh {
		return Decision{Reason: ReasonNoFreshSource}
	}

	if !loaded {
		return Decision{Refresh: true, Reason: ReasonFirstLoad}
	}
	if now.Sub(lastLoad) >= MinRefreshInterval {
		return Decision{Refresh: true, Reason: ReasonIntervalPassed}
	}
	return Decision{Reason: ReasonTooRecent}
}

func (g *Gate) sameDay(a, b time.Time) bool {
	loc := g.Location
	if loc == nil {
		loc = time.UTC
	}
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}
