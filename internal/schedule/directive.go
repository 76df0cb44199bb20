package schedule

import "time"

// DirectiveKind discriminates the variants of a sequence item
type DirectiveKind string

const (
	DirectiveAllOf           DirectiveKind = "all"
	DirectiveDurationFill    DirectiveKind = "duration"
	DirectiveSequenceRef     DirectiveKind = "sequence"
	DirectiveRollToggle      DirectiveKind = "roll"
	DirectivePadToNext       DirectiveKind = "pad_to_next"
	DirectivePadUntil        DirectiveKind = "pad_until"
	DirectiveWaitUntil       DirectiveKind = "wait_until"
	DirectiveSkipItems       DirectiveKind = "skip_items"
	DirectiveShuffleSequence DirectiveKind = "shuffle_sequence"
)

// RollKind identifies where a roll sequence is inserted around content
type RollKind string

const (
	RollPre  RollKind = "pre_roll"
	RollMid  RollKind = "mid_roll"
	RollPost RollKind = "post_roll"
)

// Expression gates mid-roll insertion. Only the literals "true" and
// "false" occur in schedule files, so it is a two-valued enum.
type Expression string

const (
	ExprTrue  Expression = "true"
	ExprFalse Expression = "false"
)

// Truthy reports whether the expression allows insertion
func (e Expression) Truthy() bool {
	return e == ExprTrue
}

// Roll describes a RollToggle directive
type Roll struct {
	Kind        RollKind
	Enabled     bool
	SequenceKey string
	Expression  Expression
}

// Directive is one item of a sequence. Kind selects which fields apply:
//
//   - DirectiveAllOf: ContentKey, CustomTitle
//   - DirectiveDurationFill: Duration, ContentKey, FillerKind, Trim, DiscardAttempts
//   - DirectiveSequenceRef: SequenceKey
//   - DirectiveRollToggle: Roll
//   - DirectivePadToNext: Duration (boundary), ContentKey, Trim, DiscardAttempts
//   - DirectivePadUntil: Clock, ContentKey, Trim, DiscardAttempts
//   - DirectiveWaitUntil: Clock
//   - DirectiveSkipItems: ContentKey, Count
//   - DirectiveShuffleSequence: SequenceKey, Seed
type Directive struct {
	Kind DirectiveKind

	ContentKey      string
	CustomTitle     string
	SequenceKey     string
	Duration        time.Duration
	Clock           time.Duration // time of day as an offset from midnight
	FillerKind      string
	Trim            bool
	DiscardAttempts int
	Count           int
	Seed            *int64
	Roll            *Roll

	// Line is the 1-based line of the directive in its source file, for diagnostics
	Line int
}

// ReferencedSequence returns the sequence key this directive points at, if any
func (d Directive) ReferencedSequence() string {
	switch d.Kind {
	case DirectiveSequenceRef, DirectiveShuffleSequence:
		return d.SequenceKey
	case DirectiveRollToggle:
		if d.Roll != nil && d.Roll.Enabled {
			return d.Roll.SequenceKey
		}
	}
	return ""
}
