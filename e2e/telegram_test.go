//go:build e2e

package e2e

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/fgeck/snapcron/internal/models"
	"github.com/fgeck/snapcron/internal/services/telegram"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getTelegramConfig(t *testing.T) models.TelegramConfig {
	t.Helper()

	botToken := os.Getenv("TEST_TELEGRAM_BOT_TOKEN")
	if botToken == "" {
		t.Skip("TEST_TELEGRAM_BOT_TOKEN not set")
	}

	chatID := os.Getenv("TEST_TELEGRAM_CHAT_ID")
	if chatID == "" {
		t.Skip("TEST_TELEGRAM_CHAT_ID not set")
	}

	return models.TelegramConfig{
		BotToken: botToken,
		ChatID:   chatID,
	}
}

func TestTelegramSendSuccessNotification_E2E(t *testing.T) {
	cfg := getTelegramConfig(t)

	svc := telegram.New(testLogger())

	msg := models.TelegramMessage{
		Success:     true,
		Host:        "e2e-test-host",
		Modes:       []string{"sync", "hourly", "daily"},
		StartTime:   time.Now().Add(-5 * time.Minute),
		Duration:    5 * time.Minute,
		SyncedPaths: 3,
		Unmounted:   true,
		Rotations: []models.RotationResult{
			{Frequency: "hourly", Depth: 24, Deleted: true, Shifted: 23, Created: "/mnt/backup/hourly.1"},
			{Frequency: "daily", Depth: 7, Shifted: 2, Created: "/mnt/backup/daily.1"},
		},
	}

	result, err := svc.SendNotification(context.Background(), cfg, msg)

	require.NoError(t, err)
	assert.True(t, result.MessageSent)
}

func TestTelegramSendFailureNotification_E2E(t *testing.T) {
	cfg := getTelegramConfig(t)

	svc := telegram.New(testLogger())

	msg := models.TelegramMessage{
		Success:      false,
		Host:         "e2e-test-host",
		Modes:        []string{"sync"},
		StartTime:    time.Now().Add(-2 * time.Minute),
		Duration:     2 * time.Minute,
		FailedStep:   "sync",
		ErrorMessage: "rsync /home/ failed: exit status 23",
	}

	result, err := svc.SendNotification(context.Background(), cfg, msg)

	require.NoError(t, err)
	assert.True(t, result.MessageSent)
}

func TestTelegramInvalidToken_E2E(t *testing.T) {
	cfg := models.TelegramConfig{
		BotToken: "invalid:token",
		ChatID:   "-100123456789",
	}

	svc := telegram.New(testLogger())

	result, err := svc.SendNotification(context.Background(), cfg, models.TelegramMessage{Success: true, Host: "test"})

	require.Error(t, err)
	assert.False(t, result.MessageSent)
}

func TestTelegramInvalidChatID_E2E(t *testing.T) {
	botToken := os.Getenv("TEST_TELEGRAM_BOT_TOKEN")
	if botToken == "" {
		t.Skip("TEST_TELEGRAM_BOT_TOKEN not set")
	}

	cfg := models.TelegramConfig{
		BotToken: botToken,
		ChatID:   "invalid-chat-id",
	}

	svc := telegram.New(testLogger())

	result, err := svc.SendNotification(context.Background(), cfg, models.TelegramMessage{Success: true, Host: "test"})

	require.Error(t, err)
	assert.False(t, result.MessageSent)
}
