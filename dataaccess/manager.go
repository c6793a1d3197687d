package dataaccess

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Manager owns the live handle and swaps it after each successful pipeline
// run. Request handlers read the current handle per request, so a swap takes
// effect without restarting the server.
type Manager struct {
	driver string
	dsn    string
	logger zerolog.Logger

	// CloseGrace delays closing a replaced handle so requests that picked
	// it up just before the swap can finish.
	CloseGrace time.Duration

	current atomic.Pointer[Handle]
}

// NewManager creates a manager with no live handle yet.
func NewManager(driver, dsn string, logger zerolog.Logger) *Manager {
	return &Manager{
		driver:     driver,
		dsn:        dsn,
		logger:     logger,
		CloseGrace: 5 * time.Second,
	}
}

// Current returns the live handle, or nil before the first swap.
func (m *Manager) Current() *Handle {
	return m.current.Load()
}

// Swap opens a handle for buildDir and installs it. The previous handle is
// closed in the background; a close failure is logged, never surfaced, since
// the new handle is already live.
func (m *Manager) Swap(buildDir string) error {
	next, err := Open(m.driver, m.dsn, buildDir)
	if err != nil {
		return fmt.Errorf("open handle for %s: %w", buildDir, err)
	}

	old := m.current.Swap(next)
	m.logger.Info().
		Str("build_dir", buildDir).
		Int("tables", len(next.catalog.Tables)).
		Msg("data-access handle swapped")

	if old != nil {
		grace := m.CloseGrace
		go func() {
			time.Sleep(grace)
			if err := old.Close(); err != nil {
				m.logger.Warn().Err(err).
					Str("build_dir", old.buildDir).
					Msg("closing replaced handle failed")
			}
		}()
	}
	return nil
}

// Close closes the live handle, if any. Used on shutdown.
func (m *Manager) Close() error {
	if h := m.current.Swap(nil); h != nil {
		return h.Close()
	}
	return nil
}
