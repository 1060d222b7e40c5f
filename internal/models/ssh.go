package models

// SSHShutdownConfig holds settings for shutting down the backup host after a run.
type SSHShutdownConfig struct {
	Host          string
	Port          int
	Username      string
	PrivateKey    []byte // loaded from KeyPath when nil
	KeyPath       string
	ShutdownDelay int    // minutes
	OS            string // "linux" (default) or "windows"
}

// SSHResult holds the result of an SSH operation.
type SSHResult struct {
	CommandRun bool
	Output     string
}
