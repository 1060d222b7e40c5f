package config

import (
	"os"
	"strconv"
	"time"

	"github.com/fgeck/snapcron/internal/models"
	"github.com/mitchellh/go-homedir"
)

// WOL returns the Wake-on-LAN settings, or nil if WOL_MAC_ADDRESS is not configured.
func WOL(cfg *models.BackupConfig) (*models.WOLConfig, error) {
	d := cfg.Directives
	if d[models.KeyWOLMACAddress] == "" {
		return nil, nil
	}

	wol := &models.WOLConfig{
		MACAddress:  d[models.KeyWOLMACAddress],
		BroadcastIP: d[models.KeyWOLBroadcastIP],
		PollURL:     d[models.KeyWOLPollURL],
	}
	if wol.BroadcastIP == "" {
		wol.BroadcastIP = "255.255.255.255"
	}

	var err error
	if wol.Timeout, err = duration(d, models.KeyWOLTimeout, 5*time.Minute); err != nil {
		return nil, err
	}
	if wol.PollInterval, err = duration(d, models.KeyWOLPollInterval, 10*time.Second); err != nil {
		return nil, err
	}
	if wol.StabilizeWait, err = duration(d, models.KeyWOLStabilizeWait, 10*time.Second); err != nil {
		return nil, err
	}

	return wol, nil
}

// SSHShutdown returns the remote shutdown settings, or nil if SSH_SHUTDOWN_HOST is not configured.
func SSHShutdown(cfg *models.BackupConfig) (*models.SSHShutdownConfig, error) {
	d := cfg.Directives
	if d[models.KeySSHShutdownHost] == "" {
		return nil, nil
	}

	keyPath, err := Require(models.KeySSHShutdownKey, os.ExpandEnv(d[models.KeySSHShutdownKey]))
	if err != nil {
		return nil, err
	}
	if keyPath, err = homedir.Expand(keyPath); err != nil {
		return nil, &InvalidDirectiveError{Key: models.KeySSHShutdownKey, Value: keyPath, Reason: err.Error()}
	}

	ssh := &models.SSHShutdownConfig{
		Host:     d[models.KeySSHShutdownHost],
		Username: d[models.KeySSHShutdownUser],
		KeyPath:  keyPath,
		OS:       d[models.KeySSHShutdownOS],
	}
	if ssh.Port, err = integer(d, models.KeySSHShutdownPort, 22); err != nil {
		return nil, err
	}
	if ssh.ShutdownDelay, err = integer(d, models.KeySSHShutdownDelay, 1); err != nil {
		return nil, err
	}
	if ssh.Username == "" {
		ssh.Username = "root"
	}
	if ssh.OS == "" {
		ssh.OS = "linux"
	}
	if ssh.OS != "linux" && ssh.OS != "windows" {
		return nil, &InvalidDirectiveError{Key: models.KeySSHShutdownOS, Value: ssh.OS, Reason: "must be one of: linux, windows"}
	}

	return ssh, nil
}

// Telegram returns the notification settings, or nil if neither Telegram directive is set.
// Both values go through os.ExpandEnv so the token can live in the environment.
func Telegram(cfg *models.BackupConfig) (*models.TelegramConfig, error) {
	d := cfg.Directives
	token := os.ExpandEnv(d[models.KeyTelegramBotToken])
	chatID := os.ExpandEnv(d[models.KeyTelegramChatID])
	if token == "" && chatID == "" {
		return nil, nil
	}

	if _, err := Require(models.KeyTelegramBotToken, token); err != nil {
		return nil, err
	}
	if _, err := Require(models.KeyTelegramChatID, chatID); err != nil {
		return nil, err
	}

	return &models.TelegramConfig{BotToken: token, ChatID: chatID}, nil
}

func duration(d map[string]string, key string, def time.Duration) (time.Duration, error) {
	raw := d[key]
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, &InvalidDirectiveError{Key: key, Value: raw, Reason: "not a duration"}
	}
	return v, nil
}

func integer(d map[string]string, key string, def int) (int, error) {
	raw := d[key]
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, &InvalidDirectiveError{Key: key, Value: raw, Reason: "not a non-negative integer"}
	}
	return v, nil
}
