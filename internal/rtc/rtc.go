// Package rtc provides the wall-clock of the real-time clock peripheral.
// The clock is used for human-readable diagnostics only; no scheduling
// decision depends on it.
package rtc

import (
	"encoding/binary"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/brocaar/chirpstack-sleepy-node/internal/config"
)

// epoch is the time the clock starts at when it was never set.
var epoch = time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)

// WallClock is the read/write interface of the RTC time-of-day value.
type WallClock interface {
	Read() (Time, error)
	Write(Time) error
}

// Time holds a wall-clock timestamp in RTC field granularity.
type Time struct {
	Day    int
	Month  int
	Year   int
	Hour   int
	Minute int
	Second int
}

// String implements fmt.Stringer, matching the dd-mm-yy hh:mm:ss format of
// the device log.
func (t Time) String() string {
	return fmt.Sprintf("%02d-%02d-%02d %02d:%02d:%02d",
		t.Day, t.Month, t.Year%100, t.Hour, t.Minute, t.Second)
}

var clock WallClock

// Setup configures the wall-clock backend.
func Setup(c config.Config) error {
	fc, err := OpenFileClock(c.Storage.RTCPath)
	if err != nil {
		return errors.Wrap(err, "open file clock error")
	}
	clock = fc
	return nil
}

// Clock returns the wall-clock backend.
func Clock() WallClock {
	return clock
}

// SetClock sets the given wall-clock backend.
func SetClock(c WallClock) {
	clock = c
}

// FileClock implements WallClock on top of a small state file holding the
// base timestamp written by the last Write call. Reads return the base plus
// the wall time elapsed since, so the clock keeps advancing across sleep
// cycles as long as the file survives.
type FileClock struct {
	path string
}

// OpenFileClock opens the wall-clock state at the given path. A missing or
// empty file means the clock was never set; reads start at the fixed epoch.
func OpenFileClock(path string) (*FileClock, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, errors.Wrap(err, "open error")
	}
	if err := f.Close(); err != nil {
		return nil, errors.Wrap(err, "close error")
	}

	c := FileClock{path: path}
	if _, err := c.base(); err != nil {
		if err := c.writeBase(epoch); err != nil {
			return nil, errors.Wrap(err, "initialize clock error")
		}
		log.WithField("time", epoch).Info("rtc: clock initialized to epoch")
	}

	return &c, nil
}

// Read implements WallClock.
func (c *FileClock) Read() (Time, error) {
	base, err := c.base()
	if err != nil {
		return Time{}, errors.Wrap(err, "read base error")
	}

	t := base.now()
	return Time{
		Day:    t.Day(),
		Month:  int(t.Month()),
		Year:   t.Year(),
		Hour:   t.Hour(),
		Minute: t.Minute(),
		Second: t.Second(),
	}, nil
}

// Write implements WallClock.
func (c *FileClock) Write(t Time) error {
	set := time.Date(t.Year, time.Month(t.Month), t.Day, t.Hour, t.Minute, t.Second, 0, time.UTC)
	if err := c.writeBase(set); err != nil {
		return errors.Wrap(err, "write base error")
	}

	log.WithField("time", set).Info("rtc: clock set")
	return nil
}

// clockBase pairs the written timestamp with the system time of the write,
// so elapsed wall time can be added on read.
type clockBase struct {
	set time.Time
	at  time.Time
}

func (b clockBase) now() time.Time {
	return b.set.Add(time.Since(b.at))
}

func (c *FileClock) base() (clockBase, error) {
	b, err := os.ReadFile(c.path)
	if err != nil {
		return clockBase{}, errors.Wrap(err, "read file error")
	}
	if len(b) != 16 {
		return clockBase{}, errors.New("clock not set")
	}

	return clockBase{
		set: time.Unix(int64(binary.LittleEndian.Uint64(b[0:8])), 0).UTC(),
		at:  time.Unix(int64(binary.LittleEndian.Uint64(b[8:16])), 0).UTC(),
	}, nil
}

func (c *FileClock) writeBase(set time.Time) error {
	b := make([]byte, 16)
	binary.LittleEndian.PutUint64(b[0:8], uint64(set.Unix()))
	binary.LittleEndian.PutUint64(b[8:16], uint64(time.Now().Unix()))
	return os.WriteFile(c.path, b, 0600)
}

// Now returns the current wall-clock time as a formatted string for log
// lines. Errors fall back to the epoch rather than failing a diagnostic.
func Now() string {
	if clock == nil {
		return epoch.Format("02-01-06 15:04:05")
	}
	t, err := clock.Read()
	if err != nil {
		return epoch.Format("02-01-06 15:04:05")
	}
	return t.String()
}
