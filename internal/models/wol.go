package models

import "time"

// WOLConfig holds Wake-on-LAN settings for the machine behind PRE_MOUNT.
type WOLConfig struct {
	MACAddress    string
	BroadcastIP   string
	PollURL       string        // URL to poll until the target answers
	Timeout       time.Duration // max time to wait for target
	PollInterval  time.Duration
	StabilizeWait time.Duration // wait after target responds
}

// WOLResult holds the result of a Wake-on-LAN operation.
type WOLResult struct {
	PacketSent   bool
	TargetReady  bool
	WaitDuration time.Duration
}
