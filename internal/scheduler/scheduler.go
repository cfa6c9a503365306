// Package scheduler computes the deep-sleep duration between uplinks.
package scheduler

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/brocaar/chirpstack-sleepy-node/internal/config"
)

// DefaultSleepGuardTime is the margin subtracted from the sleep duration so
// the last log lines can flush before power state is lost.
const DefaultSleepGuardTime = 50 * time.Millisecond

// UplinkScheduler computes the time to sleep until the next uplink.
type UplinkScheduler struct {
	interval time.Duration
	guard    time.Duration
}

// New creates an UplinkScheduler from the given configuration.
func New(c config.Config) *UplinkScheduler {
	guard := c.Device.SleepGuardTime
	if guard == 0 {
		guard = DefaultSleepGuardTime
	}

	return &UplinkScheduler{
		interval: time.Duration(c.Device.TXIntervalSec) * time.Second,
		guard:    guard,
	}
}

// SleepDuration returns the time to sleep given the time already spent awake
// this cycle. When the awake phase consumed more than the transmit interval,
// the duration is clamped to one full interval rather than going to zero:
// a single slow join must not degrade into a rapid wake loop.
func (s *UplinkScheduler) SleepDuration(elapsed time.Duration) time.Duration {
	d := s.interval - elapsed - s.guard
	if d <= 0 || d > s.interval {
		d = s.interval
	}

	log.WithFields(log.Fields{
		"elapsed":  elapsed,
		"duration": d,
	}).Info("scheduler: sleep duration computed")

	return d
}
