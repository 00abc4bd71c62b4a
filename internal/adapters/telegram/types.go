package telegram

// Update is an inbound Bot API update. Only message updates are requested
// when the webhook is registered.
type Update struct {
	UpdateID int64    `json:"update_id" validate:"gte=0"`
	Message  *Message `json:"message,omitempty" validate:"omitempty"`
}

// Message is the subset of a Bot API message the bot reads.
type Message struct {
	MessageID int64  `json:"message_id"`
	Chat      Chat   `json:"chat"`
	From      *User  `json:"from,omitempty"`
	Text      string `json:"text,omitempty"`
}

// Chat identifies the conversation a message belongs to.
type Chat struct {
	ID int64 `json:"id" validate:"required"`
}

// User is the sender of a message.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// apiResponse is the Bot API envelope for methods that return a boolean.
type apiResponse struct {
	OK     bool `json:"ok"`
	Result bool `json:"result"`
}
