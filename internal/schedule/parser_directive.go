package schedule

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// primaryKeys select the directive variant. "sequence" is absent because it
// doubles as the target field of roll toggles; on its own it is a SequenceRef.
var primaryKeys = []string{
	"all",
	"duration",
	"pad_to_next",
	"pad_until",
	"wait_until",
	"skip_items",
	"shuffle_sequence",
	"pre_roll",
	"mid_roll",
	"post_roll",
}

var allowedKeys = map[DirectiveKind][]string{
	DirectiveAllOf:           {"all", "custom_title"},
	DirectiveDurationFill:    {"duration", "content", "filler_kind", "trim", "discard_attempts"},
	DirectiveSequenceRef:     {"sequence"},
	DirectivePadToNext:       {"pad_to_next", "content", "filler_kind", "trim", "discard_attempts"},
	DirectivePadUntil:        {"pad_until", "content", "filler_kind", "trim", "discard_attempts"},
	DirectiveWaitUntil:       {"wait_until"},
	DirectiveSkipItems:       {"skip_items", "content"},
	DirectiveShuffleSequence: {"shuffle_sequence", "seed"},
}

// directiveFields gives positional access to a directive mapping
type directiveFields struct {
	file   string
	field  string
	line   int
	values map[string]*yaml.Node
}

func (f *directiveFields) fail(key, reason string) *ParseError {
	line := f.line
	if n, ok := f.values[key]; ok {
		line = n.Line
	}
	name := f.field
	if key != "" {
		name += "." + key
	}
	return malformed(f.file, line, name, reason)
}

func (f *directiveFields) has(key string) bool {
	_, ok := f.values[key]
	return ok
}

func (f *directiveFields) str(key string) (string, error) {
	n, ok := f.values[key]
	if !ok {
		return "", nil
	}
	if n.Kind != yaml.ScalarNode {
		return "", f.fail(key, "expected a string")
	}
	return strings.TrimSpace(n.Value), nil
}

func (f *directiveFields) requiredStr(key string) (string, error) {
	s, err := f.str(key)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", f.fail(key, "value is required")
	}
	return s, nil
}

func (f *directiveFields) boolean(key string) (bool, error) {
	n, ok := f.values[key]
	if !ok {
		return false, nil
	}
	var b bool
	if err := n.Decode(&b); err != nil {
		return false, f.fail(key, "expected true or false")
	}
	return b, nil
}

func (f *directiveFields) nonNegativeInt(key string) (int, error) {
	n, ok := f.values[key]
	if !ok {
		return 0, nil
	}
	var v int
	if err := n.Decode(&v); err != nil {
		return 0, f.fail(key, "expected an integer")
	}
	if v < 0 {
		return 0, f.fail(key, "must not be negative")
	}
	return v, nil
}

func (f *directiveFields) hms(key string) (time.Duration, error) {
	s, err := f.requiredStr(key)
	if err != nil {
		return 0, err
	}
	d, err := ParseHMS(s)
	if err != nil {
		return 0, f.fail(key, fmt.Sprintf("invalid duration %q: %v", s, err))
	}
	if d <= 0 {
		return 0, f.fail(key, "duration must be greater than zero")
	}
	return d, nil
}

func (f *directiveFields) clock(key string) (time.Duration, error) {
	s, err := f.requiredStr(key)
	if err != nil {
		return 0, err
	}
	d, err := ParseClock(s)
	if err != nil {
		return 0, f.fail(key, fmt.Sprintf("invalid time of day %q: %v", s, err))
	}
	return d, nil
}

// boundary accepts either HH:MM:SS or a bare integer number of minutes
func (f *directiveFields) boundary(key string) (time.Duration, error) {
	n := f.values[key]
	if n != nil && n.Kind == yaml.ScalarNode && n.Tag == "!!int" {
		minutes, err := strconv.Atoi(n.Value)
		if err != nil || minutes <= 0 {
			return 0, f.fail(key, "minutes must be a positive integer")
		}
		return time.Duration(minutes) * time.Minute, nil
	}
	return f.hms(key)
}

func parseDirective(file, field string, n *yaml.Node) (Directive, error) {
	if n.Kind != yaml.MappingNode {
		return Directive{}, malformed(file, n.Line, field, "directive must be a mapping")
	}

	f := &directiveFields{file: file, field: field, line: n.Line, values: make(map[string]*yaml.Node)}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		if _, dup := f.values[key]; dup {
			return Directive{}, f.fail(key, "duplicate key")
		}
		f.values[key] = n.Content[i+1]
	}

	var primary []string
	for _, k := range primaryKeys {
		if f.has(k) {
			primary = append(primary, k)
		}
	}

	switch {
	case len(primary) > 1:
		return Directive{}, f.fail("", fmt.Sprintf("ambiguous directive: %s", strings.Join(primary, ", ")))
	case len(primary) == 0 && f.has("sequence"):
		primary = []string{"sequence"}
	case len(primary) == 0:
		return Directive{}, f.fail("", "unrecognized directive")
	}

	d := Directive{Line: n.Line}
	var err error

	switch key := primary[0]; key {
	case "pre_roll", "mid_roll", "post_roll":
		d.Kind = DirectiveRollToggle
		d.Roll, err = f.roll(RollKind(key))
		return d, err
	case "all":
		d.Kind = DirectiveAllOf
	case "duration":
		d.Kind = DirectiveDurationFill
	case "sequence":
		d.Kind = DirectiveSequenceRef
	case "pad_to_next":
		d.Kind = DirectivePadToNext
	case "pad_until":
		d.Kind = DirectivePadUntil
	case "wait_until":
		d.Kind = DirectiveWaitUntil
	case "skip_items":
		d.Kind = DirectiveSkipItems
	case "shuffle_sequence":
		d.Kind = DirectiveShuffleSequence
	}

	for k := range f.values {
		if !slices.Contains(allowedKeys[d.Kind], k) {
			return Directive{}, f.fail(k, fmt.Sprintf("unknown field for %s directive", d.Kind))
		}
	}

	switch d.Kind {
	case DirectiveAllOf:
		if d.ContentKey, err = f.requiredStr("all"); err != nil {
			return d, err
		}
		d.CustomTitle, err = f.str("custom_title")

	case DirectiveDurationFill:
		if d.Duration, err = f.hms("duration"); err != nil {
			return d, err
		}
		if d.ContentKey, err = f.requiredStr("content"); err != nil {
			return d, err
		}
		err = f.fillOptions(&d)

	case DirectiveSequenceRef:
		d.SequenceKey, err = f.requiredStr("sequence")

	case DirectivePadToNext:
		if d.Duration, err = f.boundary("pad_to_next"); err != nil {
			return d, err
		}
		if d.ContentKey, err = f.str("content"); err != nil {
			return d, err
		}
		err = f.fillOptions(&d)

	case DirectivePadUntil:
		if d.Clock, err = f.clock("pad_until"); err != nil {
			return d, err
		}
		if d.ContentKey, err = f.str("content"); err != nil {
			return d, err
		}
		err = f.fillOptions(&d)

	case DirectiveWaitUntil:
		d.Clock, err = f.clock("wait_until")

	case DirectiveSkipItems:
		if d.Count, err = f.nonNegativeInt("skip_items"); err != nil {
			return d, err
		}
		d.ContentKey, err = f.requiredStr("content")

	case DirectiveShuffleSequence:
		if d.SequenceKey, err = f.requiredStr("shuffle_sequence"); err != nil {
			return d, err
		}
		if n, ok := f.values["seed"]; ok {
			var seed int64
			if decodeErr := n.Decode(&seed); decodeErr != nil {
				return d, f.fail("seed", "expected an integer")
			}
			d.Seed = &seed
		}
	}

	return d, err
}

func (f *directiveFields) fillOptions(d *Directive) error {
	var err error
	if d.FillerKind, err = f.str("filler_kind"); err != nil {
		return err
	}
	if d.Trim, err = f.boolean("trim"); err != nil {
		return err
	}
	d.DiscardAttempts, err = f.nonNegativeInt("discard_attempts")
	return err
}

func (f *directiveFields) roll(kind RollKind) (*Roll, error) {
	allowed := []string{string(kind), "sequence"}
	if kind == RollMid {
		allowed = append(allowed, "expression")
	}
	for k := range f.values {
		if !slices.Contains(allowed, k) {
			return nil, f.fail(k, fmt.Sprintf("unknown field for %s directive", kind))
		}
	}

	enabled, err := f.boolean(string(kind))
	if err != nil {
		return nil, err
	}
	r := &Roll{Kind: kind, Enabled: enabled, Expression: ExprTrue}

	if r.SequenceKey, err = f.str("sequence"); err != nil {
		return nil, err
	}
	if enabled && r.SequenceKey == "" {
		return nil, f.fail("sequence", "sequence is required when enabling a roll")
	}

	if f.has("expression") {
		expr, err := f.str("expression")
		if err != nil {
			return nil, err
		}
		switch Expression(strings.ToLower(expr)) {
		case ExprTrue:
			r.Expression = ExprTrue
		case ExprFalse:
			r.Expression = ExprFalse
		default:
			return nil, f.fail("expression", fmt.Sprintf("unsupported expression %q (want true or false)", expr))
		}
	}

	return r, nil
}
