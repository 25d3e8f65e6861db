package proc

import "iter"

// Sequence is a finite single-pass stream of output lines.
type Sequence interface {
	Next() bool
	Line() string
	Err() error
	Close() error
}

// Lines adapts s to a range-over-func iterator. Breaking out of the loop
// closes s.
func Lines(s Sequence) iter.Seq[string] {
	return func(yield func(string) bool) {
		if s == nil {
			return
		}
		defer func() { _ = s.Close() }()
		for s.Next() {
			if !yield(s.Line()) {
				return
			}
		}
	}
}

// Collect drains s. On failure the partial output is discarded.
func Collect(s Sequence) ([]string, error) {
	if s == nil {
		return nil, nil
	}
	defer func() { _ = s.Close() }()

	var out []string
	for s.Next() {
		out = append(out, s.Line())
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type sliceSeq struct {
	lines []string
	pos   int
	line  string
}

// FromLines replays a previously collected listing.
func FromLines(lines []string) Sequence {
	return &sliceSeq{lines: lines}
}

func (s *sliceSeq) Next() bool {
	if s.pos >= len(s.lines) {
		return false
	}
	s.line = s.lines[s.pos]
	s.pos++
	return true
}

func (s *sliceSeq) Line() string { return s.line }
func (s *sliceSeq) Err() error { return nil }
func (s *sliceSeq) Close() error {
	s.pos = len(s.lines)
	return nil
}

type concatSeq struct {
	parts []Sequence
	cur   int
	err   error
}

// Concat yields every line of parts[0], then parts[1], and so on. The first
// error stops the whole sequence.
func Concat(parts ...Sequence) Sequence {
	kept := make([]Sequence, 0, len(parts))
	for _, p := range parts {
		if p != nil {
			kept = append(kept, p)
		}
	}
	if len(kept) == 1 {
		return kept[0]
	}
	return &concatSeq{parts: kept}
}

func (c *concatSeq) Next() bool {
	for c.err == nil && c.cur < len(c.parts) {
		p := c.parts[c.cur]
		if p.Next() {
			return true
		}
		if err := p.Err(); err != nil {
			c.err = err
			_ = c.Close()
			return false
		}
		c.cur++
	}
	return false
}

func (c *concatSeq) Line() string {
	if c.cur >= len(c.parts) {
		return ""
	}
	return c.parts[c.cur].Line()
}

func (c *concatSeq) Err() error { return c.err }

func (c *concatSeq) Close() error {
	for _, p := range c.parts {
		_ = p.Close()
	}
	c.cur = len(c.parts)
	return c.err
}
