package models

import "time"

// TelegramConfig holds Telegram notification configuration.
type TelegramConfig struct {
	BotToken string
	ChatID   string
}

// TelegramMessage holds the data for a run notification.
type TelegramMessage struct {
	Success   bool
	Host      string
	Modes     []string
	StartTime time.Time
	Duration  time.Duration

	// Filled in for the phases that completed.
	SyncedPaths int
	Unmounted   bool
	Rotations   []RotationResult

	// Error info (if failed).
	ErrorMessage string
	FailedStep   string
}

// TelegramResult holds the result of a Telegram notification.
type TelegramResult struct {
	MessageSent bool
}
