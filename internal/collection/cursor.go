package collection

// Cursor records how many members of a collection have been consumed. It is
// owned by the caller so persistence stays a storage decision.
type Cursor struct {
	CollectionName string `json:"collection_name"`
	Consumed       int    `json:"consumed"`
}

// Advance moves the cursor forward by n members. Negative n is ignored.
func (c *Cursor) Advance(n int) {
	if n > 0 {
		c.Consumed += n
	}
}

// Index returns the member index the cursor points at for a list of length n
func (c *Cursor) Index(n int) int {
	if n <= 0 {
		return 0
	}
	return c.Consumed % n
}

// Pass returns how many full passes over a list of length n have completed
func (c *Cursor) Pass(n int) int {
	if n <= 0 {
		return 0
	}
	return c.Consumed / n
}

// Cursors tracks one cursor per collection name
type Cursors map[string]*Cursor

// For returns the cursor for name, creating it on first use
func (cs Cursors) For(name string) *Cursor {
	c, ok := cs[name]
	if !ok {
		c = &Cursor{CollectionName: name}
		cs[name] = c
	}
	return c
}

// Snapshot returns a copy of every cursor's state
func (cs Cursors) Snapshot() []Cursor {
	out := make([]Cursor, 0, len(cs))
	for _, c := range cs {
		out = append(out, *c)
	}
	return out
}
