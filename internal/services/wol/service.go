// Package wol wakes the machine that hosts the backup device.
package wol

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/fgeck/snapcron/internal/models"
	"github.com/mdlayher/wol"
	"github.com/rs/zerolog"
)

// Service defines the interface for Wake-on-LAN operations.
type Service interface {
	Wake(ctx context.Context, cfg models.WOLConfig) (*models.WOLResult, error)
}

// Client wraps the wol library for mocking.
type Client interface {
	Wake(addr string, mac net.HardwareAddr) error
}

// HTTPClient allows mocking HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// UDPClient sends magic packets with mdlayher/wol.
type UDPClient struct{}

// Wake sends a magic packet for mac to addr (host:port).
func (c *UDPClient) Wake(addr string, mac net.HardwareAddr) error {
	client, err := wol.NewClient()
	if err != nil {
		return fmt.Errorf("creating WOL client: %w", err)
	}
	defer func() { _ = client.Close() }()

	return client.Wake(addr, mac)
}

// Impl implements the Service interface.
type Impl struct {
	wolClient  Client
	httpClient HTTPClient
	logger     zerolog.Logger
}

// New creates a new WOL service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		wolClient:  &UDPClient{},
		httpClient: &http.Client{Timeout: 5 * time.Second},
		logger:     logger,
	}
}

// NewWithClients creates a new WOL service with custom clients (for testing).
func NewWithClients(logger zerolog.Logger, wolClient Client, httpClient HTTPClient) *Impl {
	return &Impl{
		wolClient:  wolClient,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Wake sends the magic packet and, when a poll URL is configured, blocks until
// the target answers HTTP or the timeout passes.
func (s *Impl) Wake(ctx context.Context, cfg models.WOLConfig) (*models.WOLResult, error) {
	start := time.Now()
	result := &models.WOLResult{}

	mac, err := net.ParseMAC(cfg.MACAddress)
	if err != nil {
		return result, fmt.Errorf("invalid MAC address %q: %w", cfg.MACAddress, err)
	}
	ip := net.ParseIP(cfg.BroadcastIP)
	if ip == nil {
		return result, fmt.Errorf("invalid broadcast IP %q", cfg.BroadcastIP)
	}

	s.logger.Info().
		Str("mac", cfg.MACAddress).
		Str("broadcast", cfg.BroadcastIP).
		Msg("sending WOL packet")

	if err := s.wolClient.Wake(net.JoinHostPort(ip.String(), "9"), mac); err != nil {
		return result, fmt.Errorf("sending WOL packet: %w", err)
	}
	result.PacketSent = true

	if cfg.PollURL == "" {
		result.TargetReady = true
		result.WaitDuration = time.Since(start)
		return result, nil
	}

	s.logger.Info().
		Str("url", cfg.PollURL).
		Dur("timeout", cfg.Timeout).
		Msg("waiting for backup host")

	if err := s.poll(ctx, cfg); err != nil {
		result.WaitDuration = time.Since(start)
		return result, err
	}

	if cfg.StabilizeWait > 0 {
		s.logger.Debug().Dur("wait", cfg.StabilizeWait).Msg("waiting for backup host to settle")
		select {
		case <-ctx.Done():
			result.WaitDuration = time.Since(start)
			return result, ctx.Err()
		case <-time.After(cfg.StabilizeWait):
		}
	}

	result.TargetReady = true
	result.WaitDuration = time.Since(start)
	s.logger.Info().Dur("duration", result.WaitDuration).Msg("backup host is awake")

	return result, nil
}

func (s *Impl) poll(ctx context.Context, cfg models.WOLConfig) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.PollURL, nil)
		if err != nil {
			return fmt.Errorf("building poll request: %w", err)
		}

		resp, err := s.httpClient.Do(req)
		if err == nil {
			// Any HTTP answer means the host is up.
			_ = resp.Body.Close()
			return nil
		}
		s.logger.Debug().Err(err).Msg("backup host not ready yet")

		select {
		case <-ctx.Done():
			return fmt.Errorf("backup host at %s did not answer within %s: %w", cfg.PollURL, cfg.Timeout, ctx.Err())
		case <-ticker.C:
		}
	}
}
