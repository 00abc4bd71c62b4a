// Package roster holds the fixed set of canonical players and the aliases
// that name them in chat text.
package roster

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/samber/lo"
	"golang.org/x/text/cases"
)

// Player is a canonical name together with the surface forms that refer to it.
type Player struct {
	Name    string   `koanf:"name" validate:"required"`
	Aliases []string `koanf:"aliases"`
}

// Roster is an immutable alias table. It is safe for concurrent use.
type Roster struct {
	players []string
	aliases map[string]string   // folded alias -> canonical name
	forms   map[string][]string // canonical name -> surface forms, name first
	lengths []int               // distinct alias lengths in runes, longest first
}

// DefaultPlayers is the roster used when none is configured.
func DefaultPlayers() []Player {
	return []Player{
		{Name: "Paul", Aliases: []string{"paul", "pavlo"}},
		{Name: "Roman", Aliases: []string{"roman", "roma"}},
	}
}

// Default returns the built-in two-player roster.
func Default() *Roster {
	r, err := New(DefaultPlayers()...)
	if err != nil {
		panic(err)
	}
	return r
}

// New builds a roster. Player order is preserved and used for rendering.
// Each canonical name is implicitly one of its own aliases.
func New(players ...Player) (*Roster, error) {
	if len(players) == 0 {
		return nil, ErrEmptyRoster
	}

	r := &Roster{
		players: make([]string, 0, len(players)),
		aliases: make(map[string]string),
		forms:   make(map[string][]string),
	}
	seenLen := make(map[int]struct{})

	for _, p := range players {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return nil, ErrEmptyName
		}
		if lo.Contains(r.players, name) {
			return nil, fmt.Errorf("%w: %q", ErrDuplicatePlayer, name)
		}
		r.players = append(r.players, name)

		surface := lo.UniqBy(append([]string{name}, lo.Map(p.Aliases, func(a string, _ int) string {
			return strings.TrimSpace(a)
		})...), Fold)
		for _, alias := range surface {
			if !wordEdged(alias) {
				return nil, fmt.Errorf("%w: %q", ErrInvalidAlias, alias)
			}
			key := Fold(alias)
			if owner, ok := r.aliases[key]; ok && owner != name {
				return nil, fmt.Errorf("%w: %q names %s and %s", ErrDuplicateAlias, alias, owner, name)
			}
			r.aliases[key] = name
			seenLen[utf8.RuneCountInString(alias)] = struct{}{}
			seenLen[utf8.RuneCountInString(key)] = struct{}{}
		}
		r.forms[name] = surface
	}

	r.lengths = lo.Keys(seenLen)
	sort.Sort(sort.Reverse(sort.IntSlice(r.lengths)))
	return r, nil
}

// Players returns canonical names in rendering order.
func (r *Roster) Players() []string {
	return append([]string(nil), r.players...)
}

// Has reports whether name is a canonical player.
func (r *Roster) Has(name string) bool {
	return lo.Contains(r.players, name)
}

// Canonical resolves a surface form, ignoring case.
func (r *Roster) Canonical(alias string) (string, bool) {
	name, ok := r.aliases[Fold(alias)]
	return name, ok
}

// Aliases returns the extra surface forms of a canonical player, excluding
// its name and case variants of it.
func (r *Roster) Aliases(name string) []string {
	forms := r.forms[name]
	if len(forms) < 2 {
		return nil
	}
	return append([]string(nil), forms[1:]...)
}

// AliasLengths returns the distinct alias lengths in runes, longest first.
func (r *Roster) AliasLengths() []int {
	return append([]int(nil), r.lengths...)
}

// Fold returns the case-folded form used for alias comparison.
// A Caser is stateful, so a fresh one is built per call.
func Fold(s string) string {
	return cases.Fold().String(s)
}

// IsWordRune reports whether r counts as part of a word for boundary checks.
func IsWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

func wordEdged(s string) bool {
	if s == "" {
		return false
	}
	first, _ := utf8.DecodeRuneInString(s)
	last, _ := utf8.DecodeLastRuneInString(s)
	return IsWordRune(first) && IsWordRune(last)
}
