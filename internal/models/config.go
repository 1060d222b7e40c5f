// Package models contains the data structures used throughout snapcron.
package models

// Directive names recognised in the config file.
const (
	KeyEncryptedMountpoint = "ENCRYPTED_MOUNTPOINT"
	KeyDecryptedMountpoint = "DECRYPTED_MOUNTPOINT"
	KeyEncfsPassword       = "ENCFS_PASSWORD"
	KeyRsyncFlags          = "RSYNC_FLAGS"
	KeyLogFile             = "LOG_FILE"
	KeySnapshots           = "SNAPSHOTS"
	KeyPreMount            = "PRE_MOUNT"
	KeyUnmountAtEnd        = "UNMOUNT_AT_END"

	KeyWOLMACAddress    = "WOL_MAC_ADDRESS"
	KeyWOLBroadcastIP   = "WOL_BROADCAST_IP"
	KeyWOLPollURL       = "WOL_POLL_URL"
	KeyWOLTimeout       = "WOL_TIMEOUT"
	KeyWOLPollInterval  = "WOL_POLL_INTERVAL"
	KeyWOLStabilizeWait = "WOL_STABILIZE_WAIT"

	KeySSHShutdownHost  = "SSH_SHUTDOWN_HOST"
	KeySSHShutdownPort  = "SSH_SHUTDOWN_PORT"
	KeySSHShutdownUser  = "SSH_SHUTDOWN_USER"
	KeySSHShutdownKey   = "SSH_SHUTDOWN_KEY"
	KeySSHShutdownDelay = "SSH_SHUTDOWN_DELAY"
	KeySSHShutdownOS    = "SSH_SHUTDOWN_OS"

	KeyTelegramBotToken = "TELEGRAM_BOT_TOKEN"
	KeyTelegramChatID   = "TELEGRAM_CHAT_ID"
)

// CurrentDir is the name of the live tree below the encrypted mount point.
const CurrentDir = "current"

// BackupConfig holds the configuration loaded from the rc file.
// An empty string field means the directive was not configured.
type BackupConfig struct {
	FilePaths  []string          // in file order; trailing "/" mirrors directory contents
	Directives map[string]string // every key/value line, last occurrence wins

	EncryptedMountpoint string
	DecryptedMountpoint string
	EncfsPassword       string
	RsyncFlags          string
	LogFile             string
	Snapshots           string // e.g. "hourly=24,daily=7"
	PreMount            string
	UnmountAtEnd        string // only the literal "True" (or absence) unmounts
}

// ShouldUnmount reports whether the decrypted mount point is torn down after a sync.
func (c BackupConfig) ShouldUnmount() bool {
	return c.UnmountAtEnd == "" || c.UnmountAtEnd == "True"
}
