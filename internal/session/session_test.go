package session

import (
	"math"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/require"

	"github.com/brocaar/chirpstack-sleepy-node/internal/backend/mac"
	"github.com/brocaar/chirpstack-sleepy-node/internal/config"
	"github.com/brocaar/chirpstack-sleepy-node/internal/storage"
	"github.com/brocaar/chirpstack-sleepy-node/internal/test"
	"github.com/brocaar/lorawan"
)

func TestReconcile(t *testing.T) {
	conf := test.GetConfig()

	Convey("Given an uninitialized durable and retained store", t, func() {
		durable := test.NewDurableStoreMemory()
		retained := test.NewRetainedStoreMemory()

		Convey("Then reconciliation starts at counter 0 and forces a fresh join", func() {
			s, err := Reconcile(conf, durable, retained)
			So(err, ShouldBeNil)
			So(s.FCntUp(), ShouldEqual, 0)
			So(s.FreshJoin(), ShouldBeTrue)
			So(s.Mode(), ShouldEqual, config.JoinModeOTAA)

			Convey("Then the durable record was initialized with the valid marker", func() {
				ds, err := storage.GetDeviceSession(durable)
				So(err, ShouldBeNil)
				So(ds.Joined, ShouldBeFalse)
				So(ds.FCntUp, ShouldEqual, 0)
			})

			Convey("Then the retained registers were initialized", func() {
				v, err := retained.Get(storage.SlotDataValid)
				So(err, ShouldBeNil)
				So(v, ShouldEqual, storage.DataValidMarker)
			})
		})
	})

	Convey("Given a valid durable snapshot with counter 500 and an invalid retained store", t, func() {
		durable := test.NewDurableStoreMemory()
		retained := test.NewRetainedStoreMemory()

		ds := storage.DeviceSession{
			FCntUp:  500,
			Joined:  true,
			DevAddr: lorawan.DevAddr{1, 2, 3, 4},
		}
		So(storage.SaveDeviceSession(durable, ds), ShouldBeNil)

		s, err := Reconcile(conf, durable, retained)
		So(err, ShouldBeNil)

		Convey("Then the working counter is 601, never reusing a value in [500,600]", func() {
			So(s.FCntUp(), ShouldEqual, 601)
		})

		Convey("Then the retained tx-count was set to the rejoin limit, forcing a fresh join", func() {
			v, err := retained.Get(storage.SlotTXCount)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 0) // reset again by the fresh-join decision
			So(s.FreshJoin(), ShouldBeTrue)
		})

		Convey("Then the retained counter mirrors the working counter", func() {
			v, err := retained.Get(storage.SlotFCntUp)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 601)
		})
	})

	Convey("Given valid durable and retained stores with a joined session", t, func() {
		durable := test.NewDurableStoreMemory()
		retained := test.NewRetainedStoreMemory()

		ds := storage.DeviceSession{
			FCntUp:  500,
			Joined:  true,
			DevAddr: lorawan.DevAddr{1, 2, 3, 4},
			NwkSKey: lorawan.AES128Key{1},
			AppSKey: lorawan.AES128Key{2},
		}
		So(storage.SaveDeviceSession(durable, ds), ShouldBeNil)
		So(retained.Set(storage.SlotDataValid, storage.DataValidMarker), ShouldBeNil)
		So(retained.Set(storage.SlotFCntUp, 543), ShouldBeNil)
		So(retained.Set(storage.SlotTXCount, 43), ShouldBeNil)

		Convey("Then the retained counter wins and the session is resumed ABP-style", func() {
			s, err := Reconcile(conf, durable, retained)
			So(err, ShouldBeNil)
			So(s.FCntUp(), ShouldEqual, 543)
			So(s.FreshJoin(), ShouldBeFalse)
			So(s.Mode(), ShouldEqual, config.JoinModeABP)
			So(s.Session().DevAddr, ShouldResemble, lorawan.DevAddr{1, 2, 3, 4})
			So(s.Session().NwkSKey, ShouldResemble, lorawan.AES128Key{1})
			So(s.Session().AppSKey, ShouldResemble, lorawan.AES128Key{2})

			Convey("Then completing the transmit increments the retained tx-count", func() {
				So(s.TXCount(), ShouldEqual, 43)
				So(s.HandleTransmitComplete(544), ShouldBeNil)

				v, err := retained.Get(storage.SlotTXCount)
				So(err, ShouldBeNil)
				So(v, ShouldEqual, 44)
				So(s.TXCount(), ShouldEqual, 44)
			})
		})

		Convey("When the retained counter is more than 100 ahead of the advanced durable counter", func() {
			So(retained.Set(storage.SlotFCntUp, 800), ShouldBeNil)
			writes := durable.Writes

			s, err := Reconcile(conf, durable, retained)
			So(err, ShouldBeNil)

			Convey("Then the durable record is rewritten with a value >= the retained counter", func() {
				So(durable.Writes, ShouldBeGreaterThan, writes)
				stored, err := storage.GetDeviceSession(durable)
				So(err, ShouldBeNil)
				So(stored.FCntUp, ShouldBeGreaterThanOrEqualTo, 800)
				So(s.FCntUp(), ShouldEqual, 800)
			})
		})

		Convey("When the retained tx-count reached the rejoin limit", func() {
			So(retained.Set(storage.SlotTXCount, conf.Device.RejoinLimit), ShouldBeNil)

			s, err := Reconcile(conf, durable, retained)
			So(err, ShouldBeNil)

			Convey("Then a fresh join is forced regardless of the joined flag", func() {
				So(s.FreshJoin(), ShouldBeTrue)
				So(s.TXCount(), ShouldEqual, 0)

				Convey("Then the durable record was marked not-joined before the join", func() {
					stored, err := storage.GetDeviceSession(durable)
					So(err, ShouldBeNil)
					So(stored.Joined, ShouldBeFalse)
				})
			})
		})
	})

	Convey("Given a durable counter close to the representable maximum", t, func() {
		durable := test.NewDurableStoreMemory()
		retained := test.NewRetainedStoreMemory()

		ds := storage.DeviceSession{FCntUp: math.MaxUint32 - 100, Joined: true}
		So(storage.SaveDeviceSession(durable, ds), ShouldBeNil)

		Convey("Then reconciliation fails with a frame-counter overflow", func() {
			_, err := Reconcile(conf, durable, retained)
			So(err, ShouldEqual, ErrFrameCounterOverflow)
		})
	})

	Convey("Given a retained counter close to the representable maximum", t, func() {
		durable := test.NewDurableStoreMemory()
		retained := test.NewRetainedStoreMemory()

		ds := storage.DeviceSession{FCntUp: 100, Joined: true}
		So(storage.SaveDeviceSession(durable, ds), ShouldBeNil)
		So(retained.Set(storage.SlotDataValid, storage.DataValidMarker), ShouldBeNil)
		So(retained.Set(storage.SlotFCntUp, math.MaxUint32-50), ShouldBeNil)
		So(retained.Set(storage.SlotTXCount, 1), ShouldBeNil)

		Convey("Then reconciliation fails with a frame-counter overflow", func() {
			_, err := Reconcile(conf, durable, retained)
			So(err, ShouldEqual, ErrFrameCounterOverflow)
		})
	})

	Convey("Given a device configured for plain ABP", t, func() {
		durable := test.NewDurableStoreMemory()
		retained := test.NewRetainedStoreMemory()

		abpConf := test.GetConfig()
		abpConf.Device.JoinMode = config.JoinModeABP
		abpConf.Device.DevAddr = lorawan.DevAddr{4, 3, 2, 1}
		abpConf.Device.NwkSKey = lorawan.AES128Key{9}
		abpConf.Device.AppSKey = lorawan.AES128Key{8}

		Convey("Then the configured session parameters are used", func() {
			s, err := Reconcile(abpConf, durable, retained)
			So(err, ShouldBeNil)
			So(s.Mode(), ShouldEqual, config.JoinModeABP)
			So(s.FreshJoin(), ShouldBeFalse)
			So(s.Session().DevAddr, ShouldResemble, lorawan.DevAddr{4, 3, 2, 1})
			So(s.Session().NwkSKey, ShouldResemble, lorawan.AES128Key{9})
		})
	})
}

func TestHandleJoinComplete(t *testing.T) {
	conf := test.GetConfig()

	Convey("Given a reconciled state requiring a fresh join", t, func() {
		durable := test.NewDurableStoreMemory()
		retained := test.NewRetainedStoreMemory()

		s, err := Reconcile(conf, durable, retained)
		So(err, ShouldBeNil)
		So(s.FreshJoin(), ShouldBeTrue)

		Convey("When the join completes", func() {
			sess := mac.Session{
				DevAddr: lorawan.DevAddr{5, 6, 7, 8},
				NwkSKey: lorawan.AES128Key{3},
				AppSKey: lorawan.AES128Key{4},
				FCntUp:  0,
			}
			So(s.HandleJoinComplete(sess), ShouldBeNil)

			Convey("Then the assigned session was persisted immediately", func() {
				stored, err := storage.GetDeviceSession(durable)
				So(err, ShouldBeNil)
				So(stored.Joined, ShouldBeTrue)
				So(stored.DevAddr, ShouldResemble, lorawan.DevAddr{5, 6, 7, 8})
				So(stored.NwkSKey, ShouldResemble, lorawan.AES128Key{3})
				So(stored.AppSKey, ShouldResemble, lorawan.AES128Key{4})
			})
		})
	})
}

func TestHandleTransmitComplete(t *testing.T) {
	conf := test.GetConfig()

	Convey("Given a reconciled state", t, func() {
		durable := test.NewDurableStoreMemory()
		retained := test.NewRetainedStoreMemory()

		s, err := Reconcile(conf, durable, retained)
		So(err, ShouldBeNil)

		Convey("When a transmit completes with a counter not on the amortization boundary", func() {
			writes := durable.Writes
			So(s.HandleTransmitComplete(1), ShouldBeNil)

			Convey("Then only the retained counter was written", func() {
				So(durable.Writes, ShouldEqual, writes)
				v, err := retained.Get(storage.SlotFCntUp)
				So(err, ShouldBeNil)
				So(v, ShouldEqual, 1)
			})
		})

		Convey("When a transmit completes on the amortization boundary", func() {
			writes := durable.Writes
			So(s.HandleTransmitComplete(100), ShouldBeNil)

			Convey("Then the durable record was rewritten", func() {
				So(durable.Writes, ShouldBeGreaterThan, writes)
				stored, err := storage.GetDeviceSession(durable)
				So(err, ShouldBeNil)
				So(stored.FCntUp, ShouldEqual, 100)
			})

			Convey("When the same completion is delivered twice", func() {
				writes := durable.Writes
				So(s.HandleTransmitComplete(100), ShouldBeNil)

				Convey("Then nothing was written again", func() {
					So(durable.Writes, ShouldEqual, writes)
					So(s.FCntUp(), ShouldEqual, 100)
				})
			})
		})

		Convey("When a stale completion arrives after a newer one", func() {
			So(s.HandleTransmitComplete(5), ShouldBeNil)
			So(s.HandleTransmitComplete(3), ShouldBeNil)

			Convey("Then the counters never move backwards", func() {
				So(s.FCntUp(), ShouldEqual, 5)

				v, err := retained.Get(storage.SlotFCntUp)
				So(err, ShouldBeNil)
				So(v, ShouldEqual, 5)
			})

			Convey("Then the stale event was not counted against the rejoin limit", func() {
				So(s.TXCount(), ShouldEqual, 1)
			})
		})
	})
}

// simulateBoot runs one reconciliation + join/transmit cycle against the
// given stores and returns the counter transmitted during the cycle.
func simulateBoot(t *testing.T, conf config.Config, durable storage.DurableStore, retained storage.RetainedStore) uint32 {
	s, err := Reconcile(conf, durable, retained)
	require.NoError(t, err)

	if s.FreshJoin() {
		require.NoError(t, s.HandleJoinComplete(mac.Session{
			DevAddr: lorawan.DevAddr{1, 1, 1, 1},
			NwkSKey: lorawan.AES128Key{1},
			AppSKey: lorawan.AES128Key{2},
			FCntUp:  s.FCntUp(),
		}))
	}

	transmitted := s.FCntUp()
	require.NoError(t, s.HandleTransmitComplete(transmitted+1))
	return transmitted
}

func TestRejoinScenario(t *testing.T) {
	// Fresh device, rejoin limit 300: boot 1 performs a fresh join, boots
	// 2..300 resume, boot 301 must force a fresh join again.
	conf := test.GetConfig()
	durable := test.NewDurableStoreMemory()
	retained := test.NewRetainedStoreMemory()

	s, err := Reconcile(conf, durable, retained)
	require.NoError(t, err)
	require.True(t, s.FreshJoin())
	require.EqualValues(t, 0, s.FCntUp())

	require.NoError(t, s.HandleJoinComplete(mac.Session{FCntUp: 0}))
	require.NoError(t, s.HandleTransmitComplete(1))

	v, err := retained.Get(storage.SlotFCntUp)
	require.NoError(t, err)
	require.EqualValues(t, 1, v)

	tc, err := retained.Get(storage.SlotTXCount)
	require.NoError(t, err)
	require.EqualValues(t, 1, tc)

	for boot := 2; boot <= 300; boot++ {
		s, err := Reconcile(conf, durable, retained)
		require.NoError(t, err)
		require.False(t, s.FreshJoin(), "boot %d must resume", boot)
		require.NoError(t, s.HandleTransmitComplete(s.FCntUp()+1))
	}

	tc, err = retained.Get(storage.SlotTXCount)
	require.NoError(t, err)
	require.EqualValues(t, 300, tc)

	s, err = Reconcile(conf, durable, retained)
	require.NoError(t, err)
	require.True(t, s.FreshJoin(), "boot 301 must force a fresh join")
	require.EqualValues(t, 0, s.TXCount())
}

func TestCounterMonotonicity(t *testing.T) {
	// Across boots and transmits, with power loss injected between any two,
	// the next transmitted counter is strictly greater than every counter
	// transmitted before.
	conf := test.GetConfig()
	durable := test.NewDurableStoreMemory()
	retained := test.NewRetainedStoreMemory()

	var last uint32
	seen := false

	for cycle := 0; cycle < 450; cycle++ {
		if cycle%97 == 5 {
			// full power loss
			retained.Invalidate()
		}

		transmitted := simulateBoot(t, conf, durable, retained)
		if seen {
			require.Greater(t, transmitted, last, "cycle %d reused a counter value", cycle)
		}
		last = transmitted
		seen = true
	}
}
