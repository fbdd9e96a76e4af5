package policy

import (
	"strings"
	"time"
)

// Route is the action selected for one inbound event.
type Route string

const (
	RouteHandoff  Route = "handoff"
	RouteSilence  Route = "silence"
	RouteGreeting Route = "greeting"
	RouteAudio    Route = "audio"
	RouteReply    Route = "reply"
	RouteIgnore   Route = "ignore"
)

// Facts are the inputs to one routing decision.
type Facts struct {
	Text          string
	Now           time.Time
	PrevSeen      time.Time
	HasPrev       bool
	AwaitingHuman bool
	Audio         bool
}

// Decision is the outcome of Decide. Reset means the session must be
// re-seeded with the system prompt before the route runs.
type Decision struct {
	Route Route
	Reset bool
}

// Decide evaluates the routing rules in priority order; the first match wins.
//
//  1. handoff keyword during staffed hours
//  2. awaiting a human and the idle gap has not expired: stay silent
//  3. idle gap expired: reset and continue
//  4. greeting phrase
//  5. audio attachment
//  6. non-empty text
//  7. nothing to answer
func (p *Policy) Decide(f Facts) Decision {
	if p.WantsHuman(f.Text) && p.InHumanHours(f.Now) {
		return Decision{Route: RouteHandoff}
	}

	idle := p.IdleExpired(f.PrevSeen, f.HasPrev, f.Now)
	if f.AwaitingHuman && !idle {
		return Decision{Route: RouteSilence}
	}

	d := Decision{Reset: idle}
	switch {
	case p.IsGreeting(f.Text):
		d.Route = RouteGreeting
	case f.Audio:
		d.Route = RouteAudio
	case strings.TrimSpace(f.Text) != "":
		d.Route = RouteReply
	default:
		d.Route = RouteIgnore
	}
	return d
}
