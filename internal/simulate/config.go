// Package simulate drives a running scorebot through its webhook with
// synthetic chat traffic and checks the totals it ends up with.
package simulate

import "time"

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL       string        // Base URL of the service
	Token         string        // Bot token the webhook path is keyed on
	Chats         int           // Number of chats to spread messages over
	Messages      int           // Number of messages to generate
	DuplicateRate float64       // Share of updates sent a second time
	Workers       int           // Number of concurrent senders
	Timeout       time.Duration // HTTP request timeout
	Seed          uint64        // Seed for the message generator
	OutputFile    string        // Output file for generated updates
	Verbose       bool          // Enable verbose logging
}

// Ack is the webhook response body.
type Ack struct {
	Status string `json:"status"`
}

// ChatScores is the body of GET /scores/{chat_id}.
type ChatScores struct {
	ChatID int64          `json:"chat_id"`
	Scores map[string]int `json:"scores"`
}

// Stats holds run statistics.
type Stats struct {
	UpdatesGenerated int
	UpdatesSubmitted int
	Resets           int
	Scored           int
	Ignored          int
	Commands         int
	Duplicates       int
	Failed           int
	ChatsVerified    int
	Mismatches       int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
