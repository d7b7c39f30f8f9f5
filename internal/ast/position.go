package ast

import "fmt"

// Span is a source range. Lines and columns are 1-based and both ends are
// inclusive, so a one-character identifier at the start of a file spans
// {1, 1, 1, 1}.
type Span struct {
	StartLine int `json:"startLine"`
	StartCol  int `json:"startCol"`
	EndLine   int `json:"endLine"`
	EndCol    int `json:"endCol"`
}

// SpanFromPoints converts tree-sitter style points (0-based rows, 0-based
// columns, exclusive end column) into a Span.
func SpanFromPoints(startRow, startCol, endRow, endCol uint) Span {
	return Span{
		StartLine: int(startRow) + 1,
		StartCol:  int(startCol) + 1,
		EndLine:   int(endRow) + 1,
		EndCol:    int(endCol),
	}
}

// Valid reports whether the span covers at least one character.
func (s Span) Valid() bool {
	if s.StartLine <= 0 || s.StartCol <= 0 {
		return false
	}
	if s.EndLine < s.StartLine {
		return false
	}
	return s.EndLine > s.StartLine || s.EndCol >= s.StartCol
}

// Contains reports whether the position (line, col) falls inside the span.
func (s Span) Contains(line, col int) bool {
	if line < s.StartLine || line > s.EndLine {
		return false
	}
	if line == s.StartLine && col < s.StartCol {
		return false
	}
	if line == s.EndLine && col > s.EndCol {
		return false
	}
	return true
}

// ContainsSpan reports whether other lies entirely within s.
func (s Span) ContainsSpan(other Span) bool {
	return comparePos(s.StartLine, s.StartCol, other.StartLine, other.StartCol) <= 0 &&
		comparePos(s.EndLine, s.EndCol, other.EndLine, other.EndCol) >= 0
}

// CompareStart orders spans by start position: negative when s starts
// before other, positive when after, zero when they start together.
func (s Span) CompareStart(other Span) int {
	return comparePos(s.StartLine, s.StartCol, other.StartLine, other.StartCol)
}

// CompareEnd orders spans by end position.
func (s Span) CompareEnd(other Span) int {
	return comparePos(s.EndLine, s.EndCol, other.EndLine, other.EndCol)
}

func (s Span) String() string {
	return fmt.Sprintf("%d:%d-%d:%d", s.StartLine, s.StartCol, s.EndLine, s.EndCol)
}

func comparePos(l1, c1, l2, c2 int) int {
	switch {
	case l1 < l2:
		return -1
	case l1 > l2:
		return 1
	case c1 < c2:
		return -1
	case c1 > c2:
		return 1
	default:
		return 0
	}
}
