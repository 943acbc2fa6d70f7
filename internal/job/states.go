package job

import "strings"

// State represents the lifecycle of a disc job.
type State string

const (
	StateIdle         State = "idle"
	StateIdentifying  State = "identifying"
	StateReviewNeeded State = "review_needed"
	StateRipping      State = "ripping"
	StateMatching     State = "matching"
	StateOrganizing   State = "organizing"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
)

// TitleState represents the lifecycle of a single title within a job.
type TitleState string

const (
	TitlePending   TitleState = "pending"
	TitleRipping   TitleState = "ripping"
	TitleMatching  TitleState = "matching"
	TitleMatched   TitleState = "matched"
	TitleReview    TitleState = "review"
	TitleCompleted TitleState = "completed"
	TitleFailed    TitleState = "failed"
)

// ContentType classifies what kind of media a disc holds.
type ContentType string

const (
	ContentTV      ContentType = "tv"
	ContentMovie   ContentType = "movie"
	ContentUnknown ContentType = "unknown"
)

var allStates = []State{
	StateIdle,
	StateIdentifying,
	StateReviewNeeded,
	StateRipping,
	StateMatching,
	StateOrganizing,
	StateCompleted,
	StateFailed,
}

var allTitleStates = []TitleState{
	TitlePending,
	TitleRipping,
	TitleMatching,
	TitleMatched,
	TitleReview,
	TitleCompleted,
	TitleFailed,
}

var stateSet = func() map[State]struct{} {
	set := make(map[State]struct{}, len(allStates))
	for _, state := range allStates {
		set[state] = struct{}{}
	}
	return set
}()

var titleStateSet = func() map[TitleState]struct{} {
	set := make(map[TitleState]struct{}, len(allTitleStates))
	for _, state := range allTitleStates {
		set[state] = struct{}{}
	}
	return set
}()

// validTransitions lists the permitted successor states per job state.
// Terminal states have no successors. Same-state transitions are always
// permitted and handled separately in CanTransition.
var validTransitions = map[State][]State{
	StateIdle:         {StateIdentifying, StateFailed},
	StateIdentifying:  {StateRipping, StateReviewNeeded, StateFailed},
	StateReviewNeeded: {StateRipping, StateCompleted, StateFailed},
	StateRipping:      {StateMatching, StateOrganizing, StateReviewNeeded, StateCompleted, StateFailed},
	StateMatching:     {StateOrganizing, StateReviewNeeded, StateCompleted, StateFailed},
	StateOrganizing:   {StateReviewNeeded, StateCompleted, StateFailed},
	StateCompleted:    {},
	StateFailed:       {},
}

var validTitleTransitions = map[TitleState][]TitleState{
	TitlePending:   {TitleRipping, TitleFailed},
	TitleRipping:   {TitleMatching, TitleCompleted, TitleFailed},
	TitleMatching:  {TitleMatched, TitleReview, TitleCompleted, TitleFailed},
	TitleMatched:   {TitleCompleted, TitleReview, TitleFailed},
	TitleReview:    {TitleMatched, TitleCompleted, TitleFailed},
	TitleCompleted: {},
	TitleFailed:    {},
}

// AllStates returns the ordered list of known job states.
func AllStates() []State {
	cp := make([]State, len(allStates))
	copy(cp, allStates)
	return cp
}

// ParseState converts a string into a known job State.
func ParseState(value string) (State, bool) {
	normalized := State(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := stateSet[normalized]
	return normalized, ok
}

// ParseTitleState converts a string into a known TitleState.
func ParseTitleState(value string) (TitleState, bool) {
	normalized := TitleState(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := titleStateSet[normalized]
	return normalized, ok
}

// ParseContentType converts a string into a known ContentType, defaulting to
// ContentUnknown for unrecognized values.
func ParseContentType(value string) ContentType {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(ContentTV):
		return ContentTV
	case string(ContentMovie):
		return ContentMovie
	default:
		return ContentUnknown
	}
}

// IsTerminal reports whether a job state admits no further transitions.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// IsActive reports whether the state represents in-flight pipeline work.
func (s State) IsActive() bool {
	switch s {
	case StateIdentifying, StateRipping, StateMatching, StateOrganizing:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether a title state admits no further transitions.
// Matched and review titles count as terminal for job aggregation purposes:
// they no longer occupy the pipeline even though a human or the organizer
// may still act on them.
func (s TitleState) IsTerminal() bool {
	switch s {
	case TitleMatched, TitleReview, TitleCompleted, TitleFailed:
		return true
	default:
		return false
	}
}

// CanTransition reports whether moving from one job state to another is
// permitted. Same-state transitions are always allowed so idempotent
// persistence retries do not trip validation.
func CanTransition(from, to State) bool {
	if from == to {
		_, ok := stateSet[from]
		return ok
	}
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanTransitionTitle reports whether moving from one title state to another
// is permitted.
func CanTransitionTitle(from, to TitleState) bool {
	if from == to {
		_, ok := titleStateSet[from]
		return ok
	}
	for _, next := range validTitleTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
