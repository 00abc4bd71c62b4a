package telegram

import "errors"

// Sentinel kinds for Bot API errors.
var (
	ErrAPI       = errors.New("telegram api error")
	ErrTransport = errors.New("telegram transport error")
	ErrNoToken   = errors.New("telegram bot token is empty")
)
