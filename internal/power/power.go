// Package power owns the deep-sleep transition. Sleep is a full power-state
// change, not a yield: Enter never returns, and the next thing that runs on
// this device is a fresh boot.
package power

import (
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/brocaar/chirpstack-sleepy-node/internal/rtc"
)

// SleepFunc puts the device to sleep for the given duration. Implementations
// must not return.
type SleepFunc func(d time.Duration)

var sleep SleepFunc = shutdown

// SetSleepFunc sets the sleep backend.
func SetSleepFunc(f SleepFunc) {
	sleep = f
}

// Enter enters deep sleep for the given duration. It does not return;
// execution resumes at boot.
func Enter(d time.Duration) {
	log.WithFields(log.Fields{
		"duration": d,
		"time":     rtc.Now(),
	}).Info("power: entering deep sleep")

	sleep(d)
	panic("power: sleep backend returned")
}

// shutdown is the production sleep backend: the process exits and the
// platform wake timer (systemd timer, RTC alarm) restarts it after the
// requested duration. The duration is written to stdout for the wake agent.
func shutdown(d time.Duration) {
	os.Stdout.WriteString(d.String() + "\n")
	os.Exit(0)
}
