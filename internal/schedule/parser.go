package schedule

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

const inlineSource = "<inline>"

// rawDocument mirrors the on-disk YAML layout. Field names are an external
// contract shared with third-party tooling.
type rawDocument struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Content     []rawContent  `yaml:"content"`
	Sequence    []rawSequence `yaml:"sequence"`
	Playout     []rawPlayout  `yaml:"playout"`
	Import      []string      `yaml:"import"`
}

type rawContent struct {
	Key        string `yaml:"key"`
	Collection string `yaml:"collection"`
	Order      string `yaml:"order"`
	line       int
}

func (c *rawContent) UnmarshalYAML(n *yaml.Node) error {
	type plain rawContent
	var p plain
	if err := decodeStrict(n, &p, "key", "collection", "order"); err != nil {
		return err
	}
	*c = rawContent(p)
	c.line = n.Line
	return nil
}

type rawSequence struct {
	Key   string      `yaml:"key"`
	Items []yaml.Node `yaml:"items"`
	line  int
}

func (s *rawSequence) UnmarshalYAML(n *yaml.Node) error {
	type plain rawSequence
	var p plain
	if err := decodeStrict(n, &p, "key", "items"); err != nil {
		return err
	}
	*s = rawSequence(p)
	s.line = n.Line
	return nil
}

type rawPlayout struct {
	Sequence string `yaml:"sequence"`
	Repeat   bool   `yaml:"repeat"`
	line     int
}

func (p *rawPlayout) UnmarshalYAML(n *yaml.Node) error {
	type plain rawPlayout
	var v plain
	if err := decodeStrict(n, &v, "sequence", "repeat"); err != nil {
		return err
	}
	*p = rawPlayout(v)
	p.line = n.Line
	return nil
}

// decodeStrict rejects keys outside allowed before decoding a mapping node.
// Nested unmarshalers do not inherit the top-level KnownFields setting.
func decodeStrict(n *yaml.Node, out any, allowed ...string) error {
	if n.Kind != yaml.MappingNode {
		return malformed("", n.Line, "", "expected a mapping")
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i]
		if !slices.Contains(allowed, key.Value) {
			return malformed("", key.Line, key.Value, "unknown field")
		}
	}
	if err := n.Decode(out); err != nil {
		return malformed("", n.Line, "", err.Error())
	}
	return nil
}

// Parse loads the schedule at path (resolved against baseDir when relative)
// and merges its imports. Content and sequence references are not checked.
func Parse(path, baseDir string) (*Document, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &ParseError{Kind: ParseErrImport, File: path, Cause: err}
	}

	doc, err := parseFile(abs, nil)
	if err != nil {
		return nil, err
	}
	doc.Path = abs
	return doc, nil
}

// ParseBytes parses an in-memory schedule. Imports resolve against baseDir.
func ParseBytes(data []byte, baseDir string) (*Document, error) {
	return parseData(data, inlineSource, baseDir, nil)
}

func parseFile(abs string, stack []string) (*Document, error) {
	for i, p := range stack {
		if p == abs {
			chain := append(append([]string{}, stack[i:]...), abs)
			return nil, &ParseError{
				Kind:   ParseErrImportCycle,
				File:   abs,
				Reason: "import cycle detected",
				Chain:  chain,
			}
		}
	}

	// #nosec G304 -- schedule paths are configured by the operator
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, &ParseError{Kind: ParseErrImport, File: abs, Reason: "cannot read schedule", Cause: err}
	}

	return parseData(data, abs, filepath.Dir(abs), append(stack, abs))
}

func parseData(data []byte, file, dir string, stack []string) (*Document, error) {
	var raw rawDocument
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.File = file
			return nil, pe
		}
		return nil, &ParseError{Kind: ParseErrSyntax, File: file, Cause: err}
	}

	doc := newDocument()
	doc.Name = raw.Name
	doc.Description = raw.Description
	doc.Imports = raw.Import
	doc.Sources = []string{file}

	// Imports are merged first so the importing document wins on collisions.
	for _, imp := range raw.Import {
		if strings.TrimSpace(imp) == "" {
			return nil, malformed(file, 0, "import", "empty import path")
		}
		target := imp
		if !filepath.IsAbs(target) {
			target = filepath.Join(dir, target)
		}
		target = filepath.Clean(target)

		sub, err := parseFile(target, stack)
		if err != nil {
			return nil, err
		}
		doc.merge(sub)
		doc.Sources = append(doc.Sources, sub.Sources...)
	}

	own := newDocument()
	if err := own.loadContent(file, raw.Content); err != nil {
		return nil, err
	}
	if err := own.loadSequences(file, raw.Sequence); err != nil {
		return nil, err
	}
	doc.merge(own)

	for i, p := range raw.Playout {
		if strings.TrimSpace(p.Sequence) == "" {
			return nil, malformed(file, p.line, fmt.Sprintf("playout[%d].sequence", i), "sequence is required")
		}
		doc.Playouts = append(doc.Playouts, Playout{Sequence: p.Sequence, Repeat: p.Repeat})
	}

	return doc, nil
}

func (d *Document) loadContent(file string, entries []rawContent) error {
	for i, c := range entries {
		field := fmt.Sprintf("content[%d]", i)
		if c.Key == "" {
			return malformed(file, c.line, field+".key", "key is required")
		}
		if c.Collection == "" {
			return malformed(file, c.line, field+".collection", "collection is required")
		}
		order := Order(strings.ToLower(strings.TrimSpace(c.Order)))
		if order == "" {
			order = OrderChronological
		}
		if !order.IsValid() {
			return malformed(file, c.line, field+".order",
				fmt.Sprintf("unknown order %q (want %s or %s)", c.Order, OrderChronological, OrderShuffle))
		}
		if _, dup := d.Content[c.Key]; dup {
			return malformed(file, c.line, field+".key", fmt.Sprintf("duplicate content key %q", c.Key))
		}
		d.Content[c.Key] = ContentRef{Key: c.Key, Collection: c.Collection, Order: order}
	}
	return nil
}

func (d *Document) loadSequences(file string, entries []rawSequence) error {
	for i, s := range entries {
		field := fmt.Sprintf("sequence[%d]", i)
		if s.Key == "" {
			return malformed(file, s.line, field+".key", "key is required")
		}
		if _, dup := d.Sequences[s.Key]; dup {
			return malformed(file, s.line, field+".key", fmt.Sprintf("duplicate sequence key %q", s.Key))
		}

		seq := Sequence{Key: s.Key, Items: make([]Directive, 0, len(s.Items))}
		for j := range s.Items {
			dir, err := parseDirective(file, fmt.Sprintf("%s.items[%d]", field, j), &s.Items[j])
			if err != nil {
				return err
			}
			seq.Items = append(seq.Items, dir)
		}
		d.Sequences[s.Key] = seq
	}
	return nil
}
