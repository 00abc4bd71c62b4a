package simulate

// Generator constants.
const (
	maxDelta        = 9
	noiseRate       = 0.05
	commandRate     = 0.02
	multiLineRate   = 0.25
	firstChatID     = -1_000_000_100
	firstMessageID  = 1
	workerBufferMul = 2
)

// Outcome names reported by the webhook.
const (
	outcomeScored    = "scored"
	outcomeIgnored   = "ignored"
	outcomeCommand   = "command"
	outcomeDuplicate = "duplicate"
	outcomeFailed    = "failed"
)

// PercentageMultiplier converts ratios to percentages.
const PercentageMultiplier = 100
