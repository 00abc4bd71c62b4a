package roster

import "errors"

// Sentinel kinds for roster construction errors.
var (
	ErrEmptyRoster     = errors.New("roster has no players")
	ErrEmptyName       = errors.New("player name is empty")
	ErrDuplicatePlayer = errors.New("duplicate player")
	ErrDuplicateAlias  = errors.New("alias names more than one player")
	ErrInvalidAlias    = errors.New("alias must start and end with a letter or digit")
)
