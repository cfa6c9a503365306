// Package session implements the boot reconciliation of the durable and
// retained session stores and keeps both consistent while transmits
// complete.
package session

import (
	"math"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/brocaar/chirpstack-sleepy-node/internal/backend/mac"
	"github.com/brocaar/chirpstack-sleepy-node/internal/config"
	"github.com/brocaar/chirpstack-sleepy-node/internal/storage"
)

// Frame-counter policy. The durable store is written once per
// durableWriteInterval frames, so after an untracked reset its counter lags
// reality by at most durableWriteInterval. On boot the durable counter is
// advanced by speculativeAdvance so that no already-transmitted value is
// reused, at the cost of skipping up to durableWriteInterval legitimate
// values. A retained counter more than staleWindow ahead of the advanced
// durable copy marks the durable record for an immediate rewrite.
//
// speculativeAdvance and staleWindow differ by one unit. That asymmetry is
// carried over from the field-proven firmware; it may be an off-by-one, but
// changing either constant changes the replay-safety guarantee, so they stay
// as they are.
const (
	durableWriteInterval = 100
	speculativeAdvance   = 101
	staleWindow          = 100
)

// ErrFrameCounterOverflow is returned when the working frame counter would
// exceed the representable range. There is no safe automatic recovery: the
// device needs a factory reset (new join, wiped stores) by an operator.
var ErrFrameCounterOverflow = errors.New("frame counter overflow, factory reset required")

// State holds the authoritative in-memory session state, reconciled once per
// boot from the durable and retained stores. All mutation goes through its
// methods; both stores are only ever touched from here.
type State struct {
	durable  storage.DurableStore
	retained storage.RetainedStore

	ds          storage.DeviceSession
	mode        config.JoinMode
	freshJoin   bool
	txCount     uint32
	rejoinLimit uint32
}

// Reconcile reads both stores and produces the authoritative session state
// for this boot. It runs exactly once, before any transmit.
func Reconcile(c config.Config, durable storage.DurableStore, retained storage.RetainedStore) (*State, error) {
	s := State{
		durable:     durable,
		retained:    retained,
		mode:        c.Device.JoinMode,
		rejoinLimit: c.Device.RejoinLimit,
	}

	marker, err := retained.Get(storage.SlotDataValid)
	if err != nil {
		return nil, errors.Wrap(err, "get retained marker error")
	}
	retainedValid := marker == storage.DataValidMarker

	dirty := false

	s.ds, err = storage.GetDeviceSession(durable)
	if err == storage.ErrDoesNotExist {
		// Uninitialized durable store: first boot, or foreign memory.
		// Initialize and persist right away so the marker is in place
		// before anything else happens.
		log.Warning("session: durable store uninitialized")
		s.ds = storage.DeviceSession{}
		if err := storage.SaveDeviceSession(durable, s.ds); err != nil {
			return nil, errors.Wrap(err, "save device-session error")
		}
	} else if err != nil {
		return nil, errors.Wrap(err, "get device-session error")
	} else {
		// The persisted counter lags reality by up to
		// durableWriteInterval. Advance it so no transmitted value is
		// reused.
		if s.ds.FCntUp > math.MaxUint32-speculativeAdvance {
			return nil, ErrFrameCounterOverflow
		}
		s.ds.FCntUp += speculativeAdvance
		log.WithField("f_cnt_up", s.ds.FCntUp).Info("session: durable store valid, counter advanced")
	}

	if retainedValid {
		// The retained counter is the most recently observed
		// post-transmit value and wins over the speculative advance.
		fCnt, err := retained.Get(storage.SlotFCntUp)
		if err != nil {
			return nil, errors.Wrap(err, "get retained counter error")
		}
		s.txCount, err = retained.Get(storage.SlotTXCount)
		if err != nil {
			return nil, errors.Wrap(err, "get retained tx-count error")
		}

		if fCnt > math.MaxUint32-speculativeAdvance {
			return nil, ErrFrameCounterOverflow
		}

		if fCnt > s.ds.FCntUp+staleWindow {
			// Durable copy is stale beyond its own advance, e.g.
			// a reset path skipped the periodic write for a long
			// stretch. Rewrite it now.
			dirty = true
		}
		s.ds.FCntUp = fCnt
		log.WithFields(log.Fields{
			"f_cnt_up": fCnt,
			"tx_count": s.txCount,
		}).Info("session: retained store valid")
	} else {
		// Full power loss: the retained registers can not be trusted.
		// Reinitialize them and force a rejoin, since there is no
		// proof the previous session is still safe to reuse.
		log.Warning("session: retained store invalid, forcing rejoin")
		s.txCount = s.rejoinLimit
		if err := retained.Set(storage.SlotDataValid, storage.DataValidMarker); err != nil {
			return nil, errors.Wrap(err, "set retained marker error")
		}
		if err := retained.Set(storage.SlotFCntUp, s.ds.FCntUp); err != nil {
			return nil, errors.Wrap(err, "set retained counter error")
		}
		if err := retained.Set(storage.SlotTXCount, s.txCount); err != nil {
			return nil, errors.Wrap(err, "set retained tx-count error")
		}
	}

	if dirty {
		if err := storage.SaveDeviceSession(durable, s.ds); err != nil {
			return nil, errors.Wrap(err, "save device-session error")
		}
	}

	if err := s.decideJoinMode(c); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"mode":       s.mode,
		"fresh_join": s.freshJoin,
		"f_cnt_up":   s.ds.FCntUp,
		"tx_count":   s.txCount,
	}).Info("session: reconciled")

	return &s, nil
}

// decideJoinMode resolves the effective activation mode for this boot. A
// configured OTAA device resumes its stored session (ABP-style) as long as
// the session is valid and the rejoin limit is not reached; otherwise it
// performs a fresh join.
func (s *State) decideJoinMode(c config.Config) error {
	if s.mode != config.JoinModeOTAA {
		// Plain ABP: session parameters come from the configuration,
		// only the frame counter is managed here.
		s.ds.DevAddr = c.Device.DevAddr
		s.ds.NwkSKey = c.Device.NwkSKey
		s.ds.AppSKey = c.Device.AppSKey
		return nil
	}

	if s.txCount < s.rejoinLimit && s.ds.Joined {
		s.mode = config.JoinModeABP
		log.WithField("tx_count", s.txCount).Info("session: resuming stored session")
		return nil
	}

	// Fresh join. Mark the durable record not-joined before the join
	// starts, so a crash mid-join can not be misread as joined on the
	// next boot.
	s.freshJoin = true
	s.txCount = 0
	if err := s.retained.Set(storage.SlotTXCount, 0); err != nil {
		return errors.Wrap(err, "set retained tx-count error")
	}
	s.ds.Joined = false
	if err := storage.SaveDeviceSession(s.durable, s.ds); err != nil {
		return errors.Wrap(err, "save device-session error")
	}
	log.Info("session: fresh join required")

	return nil
}

// Mode returns the effective activation mode for this boot.
func (s *State) Mode() config.JoinMode {
	return s.mode
}

// FreshJoin returns true when this boot must perform an OTAA join.
func (s *State) FreshJoin() bool {
	return s.freshJoin
}

// FCntUp returns the working uplink frame counter.
func (s *State) FCntUp() uint32 {
	return s.ds.FCntUp
}

// TXCount returns the number of completed transmits since the last fresh join.
func (s *State) TXCount() uint32 {
	return s.txCount
}

// Session returns the session parameters to hand to the MAC stack.
func (s *State) Session() mac.Session {
	return mac.Session{
		DevAddr: s.ds.DevAddr,
		NwkSKey: s.ds.NwkSKey,
		AppSKey: s.ds.AppSKey,
		FCntUp:  s.ds.FCntUp,
	}
}

// HandleJoinComplete stores the session assigned by the network after a
// fresh join and persists it immediately. Join events are bounded by the
// rejoin limit, so the extra durable write is cheap.
func (s *State) HandleJoinComplete(sess mac.Session) error {
	s.ds.DevAddr = sess.DevAddr
	s.ds.NwkSKey = sess.NwkSKey
	s.ds.AppSKey = sess.AppSKey
	s.ds.FCntUp = sess.FCntUp
	s.ds.Joined = true

	if err := storage.SaveDeviceSession(s.durable, s.ds); err != nil {
		return errors.Wrap(err, "save device-session error")
	}

	log.WithField("dev_addr", sess.DevAddr).Info("session: join keys saved")
	return nil
}

// HandleTransmitComplete records the final uplink sequence number of a
// completed transmit and counts the transmit against the rejoin limit. The
// retained counters are written unconditionally; the durable record only
// when the frame counter crosses the write-amortization boundary. Duplicate
// or stale completion events are ignored: the counter never moves backwards.
func (s *State) HandleTransmitComplete(fCnt uint32) error {
	if fCnt <= s.ds.FCntUp {
		log.WithFields(log.Fields{
			"f_cnt_up": s.ds.FCntUp,
			"reported": fCnt,
		}).Warning("session: stale transmit-complete event ignored")
		return nil
	}
	s.ds.FCntUp = fCnt

	if err := s.retained.Set(storage.SlotFCntUp, fCnt); err != nil {
		return errors.Wrap(err, "set retained counter error")
	}

	s.txCount++
	if err := s.retained.Set(storage.SlotTXCount, s.txCount); err != nil {
		return errors.Wrap(err, "set retained tx-count error")
	}

	if fCnt%durableWriteInterval == 0 {
		if err := storage.SaveDeviceSession(s.durable, s.ds); err != nil {
			return errors.Wrap(err, "save device-session error")
		}
	}

	log.WithFields(log.Fields{
		"f_cnt_up": fCnt,
		"tx_count": s.txCount,
	}).Info("session: transmit complete")
	return nil
}
