// Package ssh shuts down the backup host once a run is over.
package ssh

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/fgeck/snapcron/internal/models"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
)

// Service defines the interface for SSH operations.
type Service interface {
	Shutdown(ctx context.Context, cfg models.SSHShutdownConfig) (*models.SSHResult, error)
}

// Client wraps ssh.Client for mocking.
type Client interface {
	NewSession() (Session, error)
	Close() error
}

// Session wraps ssh.Session for mocking.
type Session interface {
	CombinedOutput(cmd string) ([]byte, error)
	Close() error
}

// Dialer opens SSH connections.
type Dialer interface {
	Dial(network, addr string, config *ssh.ClientConfig) (Client, error)
}

// NetDialer dials real SSH servers.
type NetDialer struct{}

// Dial connects to addr.
func (NetDialer) Dial(network, addr string, config *ssh.ClientConfig) (Client, error) {
	client, err := ssh.Dial(network, addr, config)
	if err != nil {
		return nil, err
	}
	return &sshClient{client: client}, nil
}

type sshClient struct {
	client *ssh.Client
}

func (c *sshClient) NewSession() (Session, error) {
	session, err := c.client.NewSession()
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (c *sshClient) Close() error {
	return c.client.Close()
}

// Impl implements the Service interface.
type Impl struct {
	dialer Dialer
	logger zerolog.Logger
}

// New creates a new SSH service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		dialer: NetDialer{},
		logger: logger,
	}
}

// NewWithDialer creates a new SSH service with a custom dialer (for testing).
func NewWithDialer(logger zerolog.Logger, dialer Dialer) *Impl {
	return &Impl{
		dialer: dialer,
		logger: logger,
	}
}

func clientConfig(cfg models.SSHShutdownConfig) (*ssh.ClientConfig, error) {
	key := cfg.PrivateKey
	if len(key) == 0 {
		var err error
		key, err = os.ReadFile(cfg.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("reading private key %s: %w", cfg.KeyPath, err)
		}
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}

	return &ssh.ClientConfig{
		User:            cfg.Username,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // LAN backup host
		Timeout:         30 * time.Second,
	}, nil
}

// ShutdownCommand returns the remote command for the configured OS and delay.
func ShutdownCommand(cfg models.SSHShutdownConfig) string {
	if cfg.OS == "windows" {
		seconds := cfg.ShutdownDelay * 60
		return fmt.Sprintf("shutdown /s /t %d", seconds)
	}
	if cfg.ShutdownDelay == 0 {
		return "sudo shutdown -h now"
	}
	return fmt.Sprintf("sudo shutdown -h +%d", cfg.ShutdownDelay)
}

// Shutdown schedules a shutdown of the backup host.
func (s *Impl) Shutdown(ctx context.Context, cfg models.SSHShutdownConfig) (*models.SSHResult, error) {
	result := &models.SSHResult{}

	s.logger.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("user", cfg.Username).
		Int("delay", cfg.ShutdownDelay).
		Msg("shutting down backup host")

	config, err := clientConfig(cfg)
	if err != nil {
		return result, err
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	type dialed struct {
		client Client
		err    error
	}
	ch := make(chan dialed, 1)
	go func() {
		client, err := s.dialer.Dial("tcp", addr, config)
		ch <- dialed{client, err}
	}()

	var client Client
	select {
	case <-ctx.Done():
		return result, ctx.Err()
	case d := <-ch:
		if d.err != nil {
			return result, fmt.Errorf("connecting to %s: %w", addr, d.err)
		}
		client = d.client
	}
	defer func() { _ = client.Close() }()

	session, err := client.NewSession()
	if err != nil {
		return result, fmt.Errorf("opening session: %w", err)
	}
	defer func() { _ = session.Close() }()

	cmd := ShutdownCommand(cfg)
	s.logger.Debug().Str("command", cmd).Msg("executing shutdown command")

	output, err := session.CombinedOutput(cmd)
	result.Output = string(output)
	result.CommandRun = true
	if err != nil {
		// The host may drop the connection while going down.
		s.logger.Warn().Err(err).Str("output", result.Output).Msg("shutdown command returned error")
	}

	s.logger.Info().Str("output", result.Output).Msg("shutdown command sent")
	return result, nil
}
