package compiler

// NodeAt returns the innermost node whose span contains pos, or nil.
func NodeAt(root Node, pos Position) Node {
	var found Node
	Walk(root, func(n Node) bool {
		if !n.Span().Contains(pos) {
			return false
		}
		found = n
		return true
	})
	return found
}

// OffsetOf converts a 0-based line and character (in runes) into a Position
// within source. Positions past the end of a line clamp to its end.
func OffsetOf(source string, line, char int) Position {
	pos := Position{Line: 1, Column: 1}
	for i, r := range source {
		if pos.Line-1 == line && (pos.Column-1 == char || r == '\n') {
			pos.Offset = i
			return pos
		}
		if r == '\n' {
			pos.Line++
			pos.Column = 1
		} else {
			pos.Column++
		}
	}
	pos.Offset = len(source)
	return pos
}
