// Package suggestion reshapes AI-generated suggestion text before the editor
// inserts it.
package suggestion

import (
	"fmt"
	"strings"
)

// MalformedLine describes a suggestion line dropped by ReflowIndentation
// because its text reaches into the code left of the cursor.
type MalformedLine struct {
	Index int
	Text  string
}

func (m MalformedLine) String() string {
	return fmt.Sprintf("ignoring malformed line %d, indentation: '%s'", m.Index, m.Text)
}

// ReflowIndentation aligns a multi-line suggestion with the cursor column.
//
// When the cursor sits after a run of spaces, every suggestion line repeats
// that left-of-cursor context; it is cut away, and continuation lines are
// re-indented with the same number of spaces. Lines with a word character just
// left of the cursor column are dropped and returned as MalformedLine.
// Columns count runes.
func ReflowIndentation(suggestion, cursorLineText string, cursorColumn int) (string, []MalformedLine) {
	indent := spacesBeforeCursor(cursorLineText, cursorColumn)
	if indent == 0 {
		return suggestion, nil
	}

	var (
		out       []string
		malformed []MalformedLine
	)
	for i, line := range strings.Split(suggestion, "\n") {
		runes := []rune(line)
		if cursorColumn-1 < len(runes) && isWordChar(runes[cursorColumn-1]) {
			malformed = append(malformed, MalformedLine{Index: i, Text: line})
			continue
		}

		var rest string
		if cursorColumn < len(runes) {
			rest = string(runes[cursorColumn:])
		}
		if i > 0 {
			rest = strings.Repeat(" ", indent) + rest
		}
		if rest == "" {
			continue
		}
		out = append(out, rest)
	}

	return strings.Join(out, "\n"), malformed
}

// spacesBeforeCursor counts the spaces immediately left of column.
func spacesBeforeCursor(line string, column int) int {
	runes := []rune(line)
	if column > len(runes) {
		column = len(runes)
	}
	n := 0
	for i := column - 1; i >= 0 && runes[i] == ' '; i-- {
		n++
	}
	return n
}

func isWordChar(r rune) bool {
	return r == '_' ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
