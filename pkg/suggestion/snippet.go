package suggestion

import (
	"regexp"
	"strconv"
	"strings"
)

// placeholderPattern matches a single-underscore wrapped variable such as _name_.
var placeholderPattern = regexp.MustCompile(`_[^_\s]+_`)

// ToPlaceholderSnippet turns every _name_ token into a numbered snippet tab
// stop, ${1:_name_}, ${2:_other_}, ... in reading order. Tokens directly after
// '@' or '#' are left alone, as is all other text. Word boundaries are not
// checked, so the inner segment of a snake_case name matches too:
// my_var_name becomes my${1:_var_}name.
func ToPlaceholderSnippet(suggestion string) string {
	matches := placeholderPattern.FindAllStringIndex(suggestion, -1)
	if len(matches) == 0 {
		return suggestion
	}

	var b strings.Builder
	b.Grow(len(suggestion) + len(matches)*6)

	last, counter := 0, 0
	for _, m := range matches {
		start, end := m[0], m[1]
		if start > 0 && (suggestion[start-1] == '@' || suggestion[start-1] == '#') {
			continue
		}
		counter++
		b.WriteString(suggestion[last:start])
		b.WriteString("${")
		b.WriteString(strconv.Itoa(counter))
		b.WriteByte(':')
		b.WriteString(suggestion[start:end])
		b.WriteByte('}')
		last = end
	}
	b.WriteString(suggestion[last:])

	return b.String()
}
