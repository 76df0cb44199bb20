package schedule

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSchedule(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const basicSchedule = `
name: Cartoons
description: Saturday morning all week
content:
  - key: toons
    collection: Classic Cartoons
    order: shuffle
  - key: bumpers
    collection: Bumpers
sequence:
  - key: morning
    items:
      - pre_roll: true
        sequence: idents
      - all: toons
        custom_title: Cartoon Hour
      - pre_roll: false
      - duration: "00:30:00"
        content: bumpers
        trim: true
        discard_attempts: 3
      - pad_to_next: 30
        content: bumpers
      - pad_until: "20:00:00"
      - wait_until: "06:00:00"
      - skip_items: 2
        content: toons
      - shuffle_sequence: idents
        seed: 42
      - mid_roll: true
        sequence: idents
        expression: "false"
      - sequence: idents
  - key: idents
    items:
      - all: bumpers
playout:
  - sequence: morning
    repeat: true
`

func TestParse_BasicDocument(t *testing.T) {
	dir := t.TempDir()
	path := writeSchedule(t, dir, "main.yml", basicSchedule)

	doc, err := Parse("main.yml", dir)
	require.NoError(t, err)

	assert.Equal(t, "Cartoons", doc.Name)
	assert.Equal(t, "Saturday morning all week", doc.Description)
	assert.Equal(t, path, doc.Path)
	assert.Equal(t, []string{path}, doc.Sources)

	require.Len(t, doc.Content, 2)
	assert.Equal(t, ContentRef{Key: "toons", Collection: "Classic Cartoons", Order: OrderShuffle}, doc.Content["toons"])
	assert.Equal(t, OrderChronological, doc.Content["bumpers"].Order, "order defaults to chronological")

	require.Len(t, doc.Playouts, 1)
	assert.Equal(t, Playout{Sequence: "morning", Repeat: true}, doc.Playouts[0])

	items := doc.Sequences["morning"].Items
	require.Len(t, items, 11)

	assert.Equal(t, DirectiveRollToggle, items[0].Kind)
	assert.Equal(t, &Roll{Kind: RollPre, Enabled: true, SequenceKey: "idents", Expression: ExprTrue}, items[0].Roll)

	assert.Equal(t, DirectiveAllOf, items[1].Kind)
	assert.Equal(t, "toons", items[1].ContentKey)
	assert.Equal(t, "Cartoon Hour", items[1].CustomTitle)

	assert.False(t, items[2].Roll.Enabled)

	fill := items[3]
	assert.Equal(t, DirectiveDurationFill, fill.Kind)
	assert.Equal(t, 30*time.Minute, fill.Duration)
	assert.True(t, fill.Trim)
	assert.Equal(t, 3, fill.DiscardAttempts)

	assert.Equal(t, DirectivePadToNext, items[4].Kind)
	assert.Equal(t, 30*time.Minute, items[4].Duration, "integer boundary is minutes")

	assert.Equal(t, DirectivePadUntil, items[5].Kind)
	assert.Equal(t, 20*time.Hour, items[5].Clock)

	assert.Equal(t, DirectiveWaitUntil, items[6].Kind)
	assert.Equal(t, 6*time.Hour, items[6].Clock)

	assert.Equal(t, DirectiveSkipItems, items[7].Kind)
	assert.Equal(t, 2, items[7].Count)

	assert.Equal(t, DirectiveShuffleSequence, items[8].Kind)
	require.NotNil(t, items[8].Seed)
	assert.Equal(t, int64(42), *items[8].Seed)

	assert.Equal(t, RollMid, items[9].Roll.Kind)
	assert.Equal(t, ExprFalse, items[9].Roll.Expression)

	assert.Equal(t, DirectiveSequenceRef, items[10].Kind)
	assert.Equal(t, "idents", items[10].SequenceKey)

	require.NoError(t, doc.Validate())
}

func TestParse_ImportShadowing(t *testing.T) {
	dir := t.TempDir()
	base := writeSchedule(t, dir, "shared/base.yml", `
content:
  - key: main
    collection: A
  - key: extra
    collection: Extras
sequence:
  - key: shared
    items:
      - all: extra
playout:
  - sequence: shared
`)
	root := writeSchedule(t, dir, "channel.yml", `
import:
  - shared/base.yml
content:
  - key: main
    collection: B
sequence:
  - key: day
    items:
      - all: main
      - sequence: shared
playout:
  - sequence: day
`)

	doc, err := Parse(root, "")
	require.NoError(t, err)

	assert.Equal(t, "B", doc.Content["main"].Collection, "importer wins on key collision")
	assert.Equal(t, "Extras", doc.Content["extra"].Collection)
	assert.Contains(t, doc.Sequences, "shared")
	assert.Equal(t, []string{root, base}, doc.Sources)
	require.Len(t, doc.Playouts, 1, "imported playouts are not merged")
	assert.Equal(t, "day", doc.Playouts[0].Sequence)
}

func TestParse_NestedImportsResolveRelativeToImporter(t *testing.T) {
	dir := t.TempDir()
	writeSchedule(t, dir, "lib/leaf.yml", `
content:
  - key: leaf
    collection: Leaves
`)
	writeSchedule(t, dir, "lib/mid.yml", `
import: [leaf.yml]
content:
  - key: mid
    collection: Middles
`)
	root := writeSchedule(t, dir, "root.yml", `
import: [lib/mid.yml]
playout:
  - sequence: none
`)

	doc, err := Parse(root, "")
	require.NoError(t, err)
	assert.Contains(t, doc.Content, "leaf")
	assert.Contains(t, doc.Content, "mid")
	assert.Len(t, doc.Sources, 3)
}

func TestParse_DiamondImportIsNotACycle(t *testing.T) {
	dir := t.TempDir()
	writeSchedule(t, dir, "common.yml", "content:\n  - key: c\n    collection: C\n")
	writeSchedule(t, dir, "a.yml", "import: [common.yml]\n")
	writeSchedule(t, dir, "b.yml", "import: [common.yml]\n")
	root := writeSchedule(t, dir, "root.yml", "import: [a.yml, b.yml]\n")

	doc, err := Parse(root, "")
	require.NoError(t, err)
	assert.Contains(t, doc.Content, "c")
}

func TestParse_ImportCycle(t *testing.T) {
	dir := t.TempDir()
	a := writeSchedule(t, dir, "a.yml", "import: [b.yml]\n")
	b := writeSchedule(t, dir, "b.yml", "import: [a.yml]\n")

	_, err := Parse(a, "")
	require.Error(t, err)
	assert.True(t, IsParseError(err, ParseErrImportCycle))

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, []string{a, b, a}, pe.Chain)
	assert.Contains(t, pe.Error(), "->")
}

func TestParse_SelfImportCycle(t *testing.T) {
	dir := t.TempDir()
	a := writeSchedule(t, dir, "self.yml", "import: [./self.yml]\n")

	_, err := Parse(a, "")
	assert.True(t, IsParseError(err, ParseErrImportCycle))
}

func TestParse_MissingImport(t *testing.T) {
	dir := t.TempDir()
	root := writeSchedule(t, dir, "root.yml", "import: [missing.yml]\n")

	_, err := Parse(root, "")
	require.Error(t, err)
	assert.True(t, IsParseError(err, ParseErrImport))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParse_MissingFile(t *testing.T) {
	_, err := Parse("nope.yml", t.TempDir())
	assert.True(t, IsParseError(err, ParseErrImport))
}

func TestParseBytes_SyntaxError(t *testing.T) {
	_, err := ParseBytes([]byte("content: [unclosed"), "")
	assert.True(t, IsParseError(err, ParseErrSyntax))
}

func TestParseBytes_EmptyDocument(t *testing.T) {
	doc, err := ParseBytes(nil, "")
	require.NoError(t, err)
	assert.Empty(t, doc.Playouts)
	assert.Empty(t, doc.Content)
}

func TestParseBytes_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{
			name:  "unknown top-level key",
			yaml:  "channels: []\n",
			field: "",
		},
		{
			name:  "bad order",
			yaml:  "content:\n  - key: a\n    collection: A\n    order: random\n",
			field: "content[0].order",
		},
		{
			name:  "missing collection",
			yaml:  "content:\n  - key: a\n",
			field: "content[0].collection",
		},
		{
			name:  "unknown content field",
			yaml:  "content:\n  - key: a\n    collection: A\n    weight: 3\n",
			field: "weight",
		},
		{
			name:  "duplicate content key",
			yaml:  "content:\n  - key: a\n    collection: A\n  - key: a\n    collection: B\n",
			field: "content[1].key",
		},
		{
			name:  "bad duration",
			yaml:  "sequence:\n  - key: s\n    items:\n      - duration: \"30m\"\n        content: a\n",
			field: "sequence[0].items[0].duration",
		},
		{
			name:  "zero duration",
			yaml:  "sequence:\n  - key: s\n    items:\n      - duration: \"00:00:00\"\n        content: a\n",
			field: "sequence[0].items[0].duration",
		},
		{
			name:  "duration without content",
			yaml:  "sequence:\n  - key: s\n    items:\n      - duration: \"00:10:00\"\n",
			field: "sequence[0].items[0].content",
		},
		{
			name:  "clock past midnight",
			yaml:  "sequence:\n  - key: s\n    items:\n      - wait_until: \"24:00:00\"\n",
			field: "sequence[0].items[0].wait_until",
		},
		{
			name:  "minutes over 59",
			yaml:  "sequence:\n  - key: s\n    items:\n      - pad_until: \"10:75:00\"\n",
			field: "sequence[0].items[0].pad_until",
		},
		{
			name:  "negative skip",
			yaml:  "sequence:\n  - key: s\n    items:\n      - skip_items: -1\n        content: a\n",
			field: "sequence[0].items[0].skip_items",
		},
		{
			name:  "negative discard attempts",
			yaml:  "sequence:\n  - key: s\n    items:\n      - duration: \"00:10:00\"\n        content: a\n        discard_attempts: -2\n",
			field: "sequence[0].items[0].discard_attempts",
		},
		{
			name:  "ambiguous directive",
			yaml:  "sequence:\n  - key: s\n    items:\n      - all: a\n        duration: \"00:10:00\"\n",
			field: "sequence[0].items[0]",
		},
		{
			name:  "unrecognized directive",
			yaml:  "sequence:\n  - key: s\n    items:\n      - play: a\n",
			field: "sequence[0].items[0]",
		},
		{
			name:  "unknown directive field",
			yaml:  "sequence:\n  - key: s\n    items:\n      - all: a\n        trim: true\n",
			field: "sequence[0].items[0].trim",
		},
		{
			name:  "roll enabled without sequence",
			yaml:  "sequence:\n  - key: s\n    items:\n      - post_roll: true\n",
			field: "sequence[0].items[0].sequence",
		},
		{
			name:  "expression on pre roll",
			yaml:  "sequence:\n  - key: s\n    items:\n      - pre_roll: true\n        sequence: x\n        expression: \"true\"\n",
			field: "sequence[0].items[0].expression",
		},
		{
			name:  "unsupported expression",
			yaml:  "sequence:\n  - key: s\n    items:\n      - mid_roll: true\n        sequence: x\n        expression: \"count > 2\"\n",
			field: "sequence[0].items[0].expression",
		},
		{
			name:  "non-integer seed",
			yaml:  "sequence:\n  - key: s\n    items:\n      - shuffle_sequence: x\n        seed: abc\n",
			field: "sequence[0].items[0].seed",
		},
		{
			name:  "directive not a mapping",
			yaml:  "sequence:\n  - key: s\n    items:\n      - all\n",
			field: "sequence[0].items[0]",
		},
		{
			name:  "playout without sequence",
			yaml:  "playout:\n  - repeat: true\n",
			field: "playout[0].sequence",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBytes([]byte(tt.yaml), "")
			require.Error(t, err)

			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			if tt.field == "" {
				// the top-level strict decoder reports unknown fields as type errors
				assert.Contains(t, []ParseErrorKind{ParseErrSyntax, ParseErrMalformed}, pe.Kind)
				return
			}
			assert.Equal(t, ParseErrMalformed, pe.Kind)
			assert.Equal(t, tt.field, pe.Field)
			assert.Equal(t, inlineSource, pe.File)
		})
	}
}

func TestParseBytes_MalformedReportsLine(t *testing.T) {
	src := "sequence:\n  - key: s\n    items:\n      - all: a\n      - duration: \"bad\"\n        content: a\n"
	_, err := ParseBytes([]byte(src), "")

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 5, pe.Line)
	assert.Contains(t, pe.Error(), "<inline>:5")
}

func TestDocument_ValidateReportsDanglingReferences(t *testing.T) {
	doc, err := ParseBytes([]byte(`
content:
  - key: a
    collection: A
sequence:
  - key: s
    items:
      - all: a
      - all: ghost
      - sequence: phantom
      - pre_roll: true
        sequence: idents
playout:
  - sequence: s
  - sequence: missing
`), "")
	require.NoError(t, err, "references are not checked while parsing")

	err = doc.Validate()
	require.ErrorIs(t, err, ErrUnresolvedReference)
	for _, key := range []string{"content ghost", "sequence phantom", "sequence idents", "sequence missing"} {
		assert.Contains(t, err.Error(), key)
	}
}

func TestDocument_Playout(t *testing.T) {
	doc, err := ParseBytes([]byte("playout:\n  - sequence: a\n  - sequence: b\n    repeat: true\n"), "")
	require.NoError(t, err)

	p, err := doc.Playout(1)
	require.NoError(t, err)
	assert.Equal(t, Playout{Sequence: "b", Repeat: true}, p)

	_, err = doc.Playout(2)
	assert.ErrorIs(t, err, ErrPlayoutNotFound)
	_, err = doc.Playout(-1)
	assert.ErrorIs(t, err, ErrPlayoutNotFound)
}
