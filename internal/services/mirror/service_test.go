package mirror

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/fgeck/snapcron/internal/config"
	"github.com/fgeck/snapcron/internal/models"
	"github.com/fgeck/snapcron/internal/services/shell"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockShell struct {
	runFunc  func(cmd shell.Command) error
	commands []shell.Command
}

func (m *mockShell) Run(_ context.Context, cmd shell.Command) (*shell.Result, error) {
	m.commands = append(m.commands, cmd)
	if m.runFunc != nil {
		if err := m.runFunc(cmd); err != nil {
			return nil, err
		}
	}
	return &shell.Result{}, nil
}

type mockMountService struct {
	prepareFunc  func(ctx context.Context, cfg models.BackupConfig) error
	unmountFunc  func(ctx context.Context, cfg models.BackupConfig) error
	unmountCalls int
}

func (m *mockMountService) Prepare(ctx context.Context, cfg models.BackupConfig) error {
	if m.prepareFunc != nil {
		return m.prepareFunc(ctx, cfg)
	}
	return nil
}

func (m *mockMountService) Unmount(ctx context.Context, cfg models.BackupConfig) error {
	m.unmountCalls++
	if m.unmountFunc != nil {
		return m.unmountFunc(ctx, cfg)
	}
	return nil
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func testConfig() models.BackupConfig {
	return models.BackupConfig{
		FilePaths:           []string{"/home/greg/documents/", "/home/greg/photos/", "/home/greg/.bashrc"},
		DecryptedMountpoint: "/mnt/plain",
		RsyncFlags:          "-a --delete",
	}
}

func TestSyncAll_Success(t *testing.T) {
	sh := &mockShell{}
	mountSvc := &mockMountService{}
	svc := NewWithServices(testLogger(), sh, mountSvc)

	result, err := svc.SyncAll(context.Background(), testConfig())

	require.NoError(t, err)
	require.Len(t, sh.commands, 3)
	assert.Equal(t, "rsync", sh.commands[0].Name)
	assert.Equal(t, []string{"/home/greg/documents/", "-a", "--delete", "/mnt/plain"}, sh.commands[0].Args)
	assert.Equal(t, []string{"/home/greg/.bashrc", "-a", "--delete", "/mnt/plain"}, sh.commands[2].Args)
	assert.Equal(t, testConfig().FilePaths, result.SyncedPaths)
	assert.True(t, result.Unmounted)
	assert.Equal(t, 1, mountSvc.unmountCalls)
}

func TestSyncAll_NoFlags(t *testing.T) {
	sh := &mockShell{}
	svc := NewWithServices(testLogger(), sh, &mockMountService{})
	cfg := testConfig()
	cfg.RsyncFlags = ""
	cfg.FilePaths = []string{"/data/"}

	_, err := svc.SyncAll(context.Background(), cfg)

	require.NoError(t, err)
	assert.Equal(t, []string{"/data/", "/mnt/plain"}, sh.commands[0].Args)
}

func TestSyncAll_StopsAtFirstFailure(t *testing.T) {
	shellErr := &shell.ShellError{Command: "rsync", ExitCode: 23}
	sh := &mockShell{
		runFunc: func(cmd shell.Command) error {
			if cmd.Args[0] == "/home/greg/photos/" {
				return shellErr
			}
			return nil
		},
	}
	mountSvc := &mockMountService{}
	svc := NewWithServices(testLogger(), sh, mountSvc)

	result, err := svc.SyncAll(context.Background(), testConfig())

	var syncErr *SyncError
	require.ErrorAs(t, err, &syncErr)
	assert.Equal(t, "/home/greg/photos/", syncErr.Path)
	assert.ErrorIs(t, err, shellErr)

	// first path copied, third never attempted, no unmount
	require.Len(t, sh.commands, 2)
	assert.Equal(t, []string{"/home/greg/documents/"}, result.SyncedPaths)
	assert.False(t, result.Unmounted)
	assert.Equal(t, 0, mountSvc.unmountCalls)
}

func TestSyncAll_EmptyPathListStillUnmounts(t *testing.T) {
	sh := &mockShell{}
	mountSvc := &mockMountService{}
	svc := NewWithServices(testLogger(), sh, mountSvc)
	cfg := testConfig()
	cfg.FilePaths = nil

	result, err := svc.SyncAll(context.Background(), cfg)

	require.NoError(t, err)
	assert.Empty(t, sh.commands)
	assert.True(t, result.Unmounted)
	assert.Equal(t, 1, mountSvc.unmountCalls)
}

func TestSyncAll_UnmountAtEnd(t *testing.T) {
	tests := []struct {
		value     string
		unmounted bool
	}{
		{"", true},
		{"True", true},
		{"False", false},
		{"true", false},
		{"no", false},
	}

	for _, tt := range tests {
		t.Run("value="+tt.value, func(t *testing.T) {
			mountSvc := &mockMountService{}
			svc := NewWithServices(testLogger(), &mockShell{}, mountSvc)
			cfg := testConfig()
			cfg.UnmountAtEnd = tt.value

			result, err := svc.SyncAll(context.Background(), cfg)

			require.NoError(t, err)
			assert.Equal(t, tt.unmounted, result.Unmounted)
			if tt.unmounted {
				assert.Equal(t, 1, mountSvc.unmountCalls)
			} else {
				assert.Equal(t, 0, mountSvc.unmountCalls)
			}
		})
	}
}

func TestSyncAll_UnmountFails(t *testing.T) {
	mountSvc := &mockMountService{
		unmountFunc: func(context.Context, models.BackupConfig) error {
			return errors.New("device busy")
		},
	}
	svc := NewWithServices(testLogger(), &mockShell{}, mountSvc)

	result, err := svc.SyncAll(context.Background(), testConfig())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "device busy")
	assert.Len(t, result.SyncedPaths, 3)
	assert.False(t, result.Unmounted)
}

func TestSyncAll_MissingDecryptedMountpoint(t *testing.T) {
	sh := &mockShell{}
	svc := NewWithServices(testLogger(), sh, &mockMountService{})
	cfg := testConfig()
	cfg.DecryptedMountpoint = ""

	_, err := svc.SyncAll(context.Background(), cfg)

	var missing *config.MissingDirectiveError
	require.ErrorAs(t, err, &missing)
	assert.Empty(t, sh.commands)
}

func TestSyncAll_QuotedFlags(t *testing.T) {
	sh := &mockShell{}
	svc := NewWithServices(testLogger(), sh, &mockMountService{})
	cfg := testConfig()
	cfg.FilePaths = []string{"/src/"}
	cfg.RsyncFlags = `-a --exclude='*.tmp' -e "ssh -p 2222"`

	_, err := svc.SyncAll(context.Background(), cfg)

	require.NoError(t, err)
	require.Len(t, sh.commands, 1)
	assert.Equal(t, []string{"/src/", "-a", "--exclude=*.tmp", "-e", "ssh -p 2222", "/mnt/plain"}, sh.commands[0].Args)
}

func TestSyncAll_UnbalancedQuoteInFlags(t *testing.T) {
	sh := &mockShell{}
	mountSvc := &mockMountService{}
	svc := NewWithServices(testLogger(), sh, mountSvc)
	cfg := testConfig()
	cfg.RsyncFlags = `-a --exclude='*.tmp`

	_, err := svc.SyncAll(context.Background(), cfg)

	var invalid *config.InvalidDirectiveError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, models.KeyRsyncFlags, invalid.Key)
	assert.Empty(t, sh.commands)
	assert.Zero(t, mountSvc.unmountCalls)
}
