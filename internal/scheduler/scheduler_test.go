package scheduler

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/brocaar/chirpstack-sleepy-node/internal/test"
)

func TestSleepDuration(t *testing.T) {
	conf := test.GetConfig()
	conf.Device.TXIntervalSec = 60

	Convey("Given an uplink scheduler with a 60s interval", t, func() {
		s := New(conf)

		Convey("Then a short awake phase sleeps for the remainder minus the guard", func() {
			d := s.SleepDuration(4 * time.Second)
			So(d, ShouldEqual, 56*time.Second-DefaultSleepGuardTime)
		})

		Convey("Then an awake phase longer than the interval clamps to one full interval", func() {
			So(s.SleepDuration(90*time.Second), ShouldEqual, 60*time.Second)
		})

		Convey("Then an awake phase just under the interval clamps instead of going near-zero", func() {
			So(s.SleepDuration(60*time.Second-10*time.Millisecond), ShouldEqual, 60*time.Second)
		})
	})

	Convey("Given a configured sleep guard time", t, func() {
		conf := test.GetConfig()
		conf.Device.TXIntervalSec = 60
		conf.Device.SleepGuardTime = 200 * time.Millisecond
		s := New(conf)

		Convey("Then the configured guard is subtracted", func() {
			So(s.SleepDuration(10*time.Second), ShouldEqual, 50*time.Second-200*time.Millisecond)
		})
	})
}
