// Package transcript accumulates normalized transcript events for one
// provider into ordered final segments, a current interim segment and a
// monotonic word count.
package transcript

import (
	"strings"
	"sync"
	"time"

	"stt-comparison-service/internal/service/wer"
)

// Policy selects how a provider's events advance the word count.
type Policy int

const (
	// PolicyDelta - each final event carries exactly the newly
	// recognized text; words are counted at finalization.
	PolicyDelta Policy = iota

	// PolicyCumulative - the provider re-sends the whole growing turn
	// on every update and turns are immutable once a new turn starts.
	// Words are counted incrementally by prefix comparison so that text
	// already attributed is never counted twice.
	PolicyCumulative
)

// String returns the string representation of the policy.
func (p Policy) String() string {
	switch p {
	case PolicyDelta:
		return "delta"
	case PolicyCumulative:
		return "cumulative"
	default:
		return "unknown"
	}
}

// Accumulator tracks transcript state for a single provider within one
// recording session. Thread-safe: provider events arrive on the
// adapter's read goroutine while word counts are read elsewhere.
type Accumulator struct {
	mu            sync.Mutex
	policy        Policy
	finalSegments []string
	interim       string
	wordCount     int

	// Words already counted for the current cumulative turn.
	turnCounted int

	sessionStart  time.Time
	firstResponse time.Duration
	firstSeen     bool

	now func() time.Time
}

// New creates an accumulator for the given policy. sessionStart anchors
// first-response latency measurement.
func New(policy Policy, sessionStart time.Time) *Accumulator {
	return &Accumulator{
		policy:       policy,
		sessionStart: sessionStart,
		now:          time.Now,
	}
}

// OnInterim records an interim (not yet final) transcript update. The
// provider sends the full current utterance-so-far, not a delta.
func (a *Accumulator) OnInterim(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.markFirstResponse(text)

	if a.policy == PolicyCumulative {
		a.absorbCumulative(text)
		return
	}
	a.interim = text
}

// OnFinal records a finalized transcript segment. The segment is
// appended to the ordered final list and the interim slot is cleared.
func (a *Accumulator) OnFinal(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.markFirstResponse(text)

	if a.policy == PolicyCumulative {
		a.absorbCumulative(text)
		if a.interim != "" {
			a.finalSegments = append(a.finalSegments, a.interim)
		}
		a.interim = ""
		a.turnCounted = 0
		return
	}

	if text != "" {
		a.wordCount += len(wer.Tokenize(text))
		a.finalSegments = append(a.finalSegments, text)
	}
	a.interim = ""
}

// absorbCumulative folds a cumulative turn update into state. Caller
// holds the lock.
//
// A new event belongs to the current turn iff it extends (or revises
// downward) the previous interim text; otherwise the previous interim
// is finalized and the event starts a fresh turn.
func (a *Accumulator) absorbCumulative(text string) {
	// An empty update carries no text and must not erase the turn in
	// flight; a final with empty text just closes out the interim.
	if text == "" {
		return
	}

	switch {
	case a.interim == "" || strings.HasPrefix(text, a.interim):
		// Same turn, grown (or first event of the turn).
	case strings.HasPrefix(a.interim, text):
		// Shorter correction of the same turn: replace the interim but
		// never walk the count backwards.
		a.interim = text
		return
	default:
		// New turn: the previous interim is immutable now.
		if a.interim != "" {
			a.finalSegments = append(a.finalSegments, a.interim)
		}
		a.turnCounted = 0
	}

	if n := len(wer.Tokenize(text)); n > a.turnCounted {
		a.wordCount += n - a.turnCounted
		a.turnCounted = n
	}
	a.interim = text
}

// Flush finalizes a non-empty interim segment, e.g. on session stop.
// Words counted incrementally are not counted again.
func (a *Accumulator) Flush() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.interim == "" {
		return
	}
	if a.policy == PolicyDelta {
		// Delta vendors only count at finalization; the flushed interim
		// was never attributed.
		a.wordCount += len(wer.Tokenize(a.interim))
	}
	a.finalSegments = append(a.finalSegments, a.interim)
	a.interim = ""
	a.turnCounted = 0
}

// FinalSegments returns a copy of the ordered finalized segments.
func (a *Accumulator) FinalSegments() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.finalSegments))
	copy(out, a.finalSegments)
	return out
}

// Interim returns the current in-flight segment.
func (a *Accumulator) Interim() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.interim
}

// Words returns the cumulative word count. Monotonic non-decreasing.
func (a *Accumulator) Words() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.wordCount
}

// Transcript returns all finalized segments joined by a space.
func (a *Accumulator) Transcript() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return strings.Join(a.finalSegments, " ")
}

// FirstResponse returns the latency from session start to the first
// non-empty transcript event, and whether one was observed.
func (a *Accumulator) FirstResponse() (time.Duration, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.firstResponse, a.firstSeen
}

// markFirstResponse records first-response latency once. Caller holds
// the lock.
func (a *Accumulator) markFirstResponse(text string) {
	if a.firstSeen || strings.TrimSpace(text) == "" {
		return
	}
	a.firstSeen = true
	a.firstResponse = a.now().Sub(a.sessionStart)
}
