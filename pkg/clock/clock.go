// Package clock tracks open recording pipes process-wide and engages
// the configured clock-control mode while at least one is open.
package clock

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Mode selects how the logical clock relates to wall time while
// recording.
type Mode string

const (
	// ModeSlowDown dilates time globally so the real frame rate always
	// matches the target, guaranteeing exactly one source frame per
	// tick.
	ModeSlowDown Mode = "slowdown"

	// ModeTargetRate merely hints the host loop to run near the target
	// rate without forcing exact correspondence, accepting drift.
	ModeTargetRate Mode = "target-rate"
)

// ParseMode validates a configured mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSlowDown, ModeTargetRate:
		return Mode(s), nil
	case "":
		return ModeTargetRate, nil
	}
	return "", fmt.Errorf("unknown clock mode %q", s)
}

// Driver is the host loop's ability to apply clock control. The
// recorder core owns when control is engaged, never how.
type Driver interface {
	Engage(mode Mode, framerate int)
	Disengage()
}

// NopDriver is a Driver that does nothing.
type NopDriver struct{}

func (NopDriver) Engage(Mode, int) {}
func (NopDriver) Disengage() {}

// Controller counts currently-open pipe sessions and engages the clock
// mode exactly once on the first open, disengaging exactly once on the
// last close, regardless of how sessions overlap. All sessions mutate
// it from the same tick loop; it carries no locking of its own.
type Controller struct {
	log    zerolog.Logger
	driver Driver
	mode   Mode
	open   int
}

// NewController creates a controller for the given mode. A nil driver
// is replaced with NopDriver.
func NewController(mode Mode, driver Driver, log zerolog.Logger) *Controller {
	if driver == nil {
		driver = NopDriver{}
	}
	return &Controller{log: log, driver: driver, mode: mode}
}

// Mode returns the configured clock mode.
func (c *Controller) Mode() Mode { return c.mode }

// OpenSessions returns the number of currently-open pipe sessions.
func (c *Controller) OpenSessions() int { return c.open }

// SessionOpened records a successful pipe open. The first open engages
// clock control at the opening session's frame rate.
func (c *Controller) SessionOpened(framerate int) {
	c.open++
	if c.open == 1 {
		c.log.Info().
			Str("mode", string(c.mode)).
			Int("framerate", framerate).
			Msg("clock control engaged")
		c.driver.Engage(c.mode, framerate)
	}
}

// SessionClosed records a pipe close. The last close disengages clock
// control.
func (c *Controller) SessionClosed() {
	if c.open == 0 {
		c.log.Error().Msg("session close with no open sessions")
		return
	}
	c.open--
	if c.open == 0 {
		c.log.Info().Msg("clock control disengaged")
		c.driver.Disengage()
	}
}
