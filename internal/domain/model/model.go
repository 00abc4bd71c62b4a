// Package model contains domain models passed between layers.
package model

// Delta is a signed score adjustment for a canonical player, produced by the
// parser and consumed immediately by the score store.
type Delta struct {
	Player string
	Amount int
}

// Reply is an outbound message waiting for delivery to a chat.
type Reply struct {
	ChatID        int64
	Text          string
	ReplyTo       int64 // message id to thread under; 0 sends a plain message
	CorrelationID string
}
