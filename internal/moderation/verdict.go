package moderation

import "strings"

// Decision is the parsed moderation outcome.
type Decision string

const (
	DecisionAllow  Decision = "allow"
	DecisionReject Decision = "reject"
)

// DefaultRejectReason is used when a reject verdict carries no reason.
const DefaultRejectReason = "Policy violation"

// Verdict is the parsed oracle response for one request.
type Verdict struct {
	Decision Decision
	Reason   string
}

// ParseVerdict parses the oracle wire format: fields separated by "|",
// the first compared case-sensitively against the literal "allow". Any
// other first token means reject; the optional second field is the
// human-readable reason.
func ParseVerdict(raw string) Verdict {
	fields := strings.SplitN(raw, "|", 2)

	decision := strings.TrimSpace(fields[0])
	reason := ""
	if len(fields) > 1 {
		reason = strings.TrimSpace(fields[1])
	}

	if decision == "allow" {
		return Verdict{Decision: DecisionAllow, Reason: reason}
	}
	return Verdict{Decision: DecisionReject, Reason: reason}
}

// ReasonOrDefault returns the verdict reason, falling back to
// DefaultRejectReason when empty.
func (v Verdict) ReasonOrDefault() string {
	if v.Reason == "" {
		return DefaultRejectReason
	}
	return v.Reason
}

// FetchState labels the outcome of a single non-blocking verdict check.
type FetchState int

const (
	// FetchPending means the oracle has not produced a result yet; the
	// ledger entry is left untouched for the next sweep.
	FetchPending FetchState = iota

	// FetchReady means a verdict was parsed and is ready to enforce.
	FetchReady

	// FetchFailed means the oracle reported an explicit error or the
	// transport call failed; the entry is dropped, never retried.
	FetchFailed
)

// FetchOutcome is the tagged result of a verdict fetch. Exactly one of
// Verdict (FetchReady) or Err (FetchFailed) is meaningful.
type FetchOutcome struct {
	State   FetchState
	Verdict Verdict
	Err     error
}

// Pending returns a FetchOutcome in the pending state.
func Pending() FetchOutcome {
	return FetchOutcome{State: FetchPending}
}

// Ready returns a FetchOutcome carrying a parsed verdict.
func Ready(v Verdict) FetchOutcome {
	return FetchOutcome{State: FetchReady, Verdict: v}
}

// Failed returns a FetchOutcome carrying a definite error.
func Failed(err error) FetchOutcome {
	return FetchOutcome{State: FetchFailed, Err: err}
}
