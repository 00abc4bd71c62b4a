// Package parser extracts score deltas from free-form chat text.
//
// The text is scanned left to right, one rune at a time, for the grammar
//
//	match  := alias WB ws* delim? ws* sign? ws* digits WB
//	delim  := ':' | '-' | '–' | '—'
//	sign   := '+' | '-' | '−'
//	digits := Nd+
//
// where WB is a word boundary (the neighbouring rune, or the edge of the text,
// is not a letter, number or underscore) and ws is any Unicode white space,
// line breaks included. Nd is any Unicode decimal digit, so "Paul ٣" and
// "Paul ３" both read as 3. Aliases are compared after Unicode case folding and
// only roster aliases can start a match.
//
// A hyphen-minus with no sign after it is the sign itself, so "Roma -1" is
// negative; it acts as a delimiter only when a sign follows ("Paul - +3").
// Runes consumed by a match are never rescanned. Text that does not fit the
// grammar is skipped; Parse never fails.
package parser

import (
	"math"
	"unicode"

	"github.com/okian/scorebot/internal/domain/model"
	"github.com/okian/scorebot/internal/domain/roster"
)

const (
	minusSign = '\u2212'
	enDash    = '\u2013'
	emDash    = '\u2014'
)

// Parser turns text into deltas for the players of a roster.
type Parser struct {
	roster *roster.Roster
}

// New returns a parser bound to r.
func New(r *roster.Roster) *Parser {
	return &Parser{roster: r}
}

// Parse returns the deltas found in text in order of occurrence. Repeated
// mentions of a player yield repeated deltas. The result is nil when nothing
// matches.
func (p *Parser) Parse(text string) []model.Delta {
	rs := []rune(text)
	var out []model.Delta

	for i := 0; i < len(rs); {
		if !atWordStart(rs, i) {
			i++
			continue
		}
		if d, next, ok := p.matchAt(rs, i); ok {
			out = append(out, d)
			i = next
			continue
		}
		i++
	}
	return out
}

// matchAt tries every alias length at i, longest first.
func (p *Parser) matchAt(rs []rune, i int) (model.Delta, int, bool) {
	for _, n := range p.roster.AliasLengths() {
		end := i + n
		if end > len(rs) {
			continue
		}
		name, ok := p.roster.Canonical(string(rs[i:end]))
		if !ok {
			continue
		}
		if end < len(rs) && roster.IsWordRune(rs[end]) {
			continue
		}
		if amount, next, ok := scanAmount(rs, end); ok {
			return model.Delta{Player: name, Amount: amount}, next, true
		}
	}
	return model.Delta{}, 0, false
}

// scanAmount reads the optional delimiter, optional sign and digits that
// follow an alias ending at j.
func scanAmount(rs []rune, j int) (int, int, bool) {
	j = skipSpace(rs, j)

	var delim rune
	if j < len(rs) && isDelim(rs[j]) {
		delim = rs[j]
		j = skipSpace(rs, j+1)
	}

	negative := false
	switch {
	case j < len(rs) && isSign(rs[j]):
		negative = rs[j] != '+'
		j = skipSpace(rs, j+1)
	case delim == '-':
		negative = true
	}

	start := j
	magnitude := 0
	for j < len(rs) && unicode.IsDigit(rs[j]) {
		magnitude = accumulate(magnitude, digitValue(rs[j]))
		j++
	}
	if j == start {
		return 0, 0, false
	}
	if j < len(rs) && roster.IsWordRune(rs[j]) {
		return 0, 0, false
	}

	if negative {
		return -magnitude, j, true
	}
	return magnitude, j, true
}

// accumulate appends digit to n, saturating at math.MaxInt.
func accumulate(n, digit int) int {
	if n > (math.MaxInt-digit)/10 {
		return math.MaxInt
	}
	return n*10 + digit
}

// digitValue returns the value of a decimal digit rune. Unicode lays out
// every Nd script as contiguous runs of ten starting at zero.
func digitValue(r rune) int {
	if r >= '0' && r <= '9' {
		return int(r - '0')
	}
	first := r
	for unicode.IsDigit(first - 1) {
		first--
	}
	return int(r-first) % 10
}

func atWordStart(rs []rune, i int) bool {
	if !roster.IsWordRune(rs[i]) {
		return false
	}
	return i == 0 || !roster.IsWordRune(rs[i-1])
}

func skipSpace(rs []rune, j int) int {
	for j < len(rs) && unicode.IsSpace(rs[j]) {
		j++
	}
	return j
}

func isDelim(r rune) bool {
	return r == ':' || r == '-' || r == enDash || r == emDash
}

func isSign(r rune) bool {
	return r == '+' || r == '-' || r == minusSign
}
