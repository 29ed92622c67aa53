package models

import "time"

// TelegramConfig holds Telegram notification configuration.
type TelegramConfig struct {
	BotToken string
	ChatID   string
}

// TelegramMessage holds the data for a provisioning notification.
type TelegramMessage struct {
	Success    bool
	NetworkID  string
	SSIDName   string
	SSIDNumber int
	RunID      string
	StartTime  time.Time
	Duration   time.Duration

	// Apply details (if successful).
	GroupPolicyName    string
	GroupPolicyAction  PolicyAction
	GuestPolicyName    string
	DefaultIPSKCreated bool
	SplashURL          string
	ManualStepRequired bool

	// Error info (if failed).
	ErrorMessage   string
	FailedStep     string
	CompletedSteps []string
}

// TelegramResult holds the result of a Telegram notification.
type TelegramResult struct {
	MessageSent bool
	Error       error
}
