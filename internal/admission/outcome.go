// Package admission - Escalation decisions for clients that tripped the
// micro-window limiter.
//
// Decide is a pure function over (banned, recent count); Engine wraps it with
// the store reads and writes performed on the limited path.
package admission

import (
	"net/http"

	"ipgate/internal/models"
)

// Outcome is the result of admitting a single request.
type Outcome int

const (
	// Allowed requests reach the downstream handler.
	Allowed Outcome = iota
	// Throttled requests are rejected but the client is not banned.
	Throttled
	// Banned requests come from a client with at least one ban entry.
	Banned
)

func (o Outcome) String() string {
	switch o {
	case Allowed:
		return "allowed"
	case Throttled:
		return "throttled"
	case Banned:
		return "banned"
	default:
		return "unknown"
	}
}

// StatusCode returns the HTTP status written for the outcome.
func (o Outcome) StatusCode() int {
	switch o {
	case Throttled:
		return http.StatusTooManyRequests
	case Banned:
		return http.StatusForbidden
	default:
		return http.StatusOK
	}
}

// Message returns the rejection message, empty for Allowed.
func (o Outcome) Message() string {
	switch o {
	case Throttled:
		return models.MessageThrottled
	case Banned:
		return models.MessageBanned
	default:
		return ""
	}
}

// Verdict is the decision for one limited-path request together with the side
// effect the caller must perform.
type Verdict struct {
	Outcome Outcome
	Ban     bool
	Record  bool
}

// Decide maps the ban state and the number of prior limited-path entries in the
// escalation window to a verdict. A client already banned gets no side effects;
// a count strictly above threshold escalates to a ban; anything else is
// throttled and recorded.
func Decide(banned bool, recentCount, threshold int) Verdict {
	switch {
	case banned:
		return Verdict{Outcome: Banned}
	case recentCount > threshold:
		return Verdict{Outcome: Banned, Ban: true}
	default:
		return Verdict{Outcome: Throttled, Record: true}
	}
}
