// Package uplink runs one wake cycle of the node: reconcile session state,
// activate through the MAC stack, transmit one uplink, persist the counters
// and enter deep sleep.
package uplink

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/brocaar/chirpstack-sleepy-node/internal/backend/mac"
	"github.com/brocaar/chirpstack-sleepy-node/internal/band"
	"github.com/brocaar/chirpstack-sleepy-node/internal/config"
	"github.com/brocaar/chirpstack-sleepy-node/internal/power"
	"github.com/brocaar/chirpstack-sleepy-node/internal/rtc"
	"github.com/brocaar/chirpstack-sleepy-node/internal/scheduler"
	"github.com/brocaar/chirpstack-sleepy-node/internal/session"
	"github.com/brocaar/chirpstack-sleepy-node/internal/storage"
)

// uplinkFPort is the application port of the test payload.
const uplinkFPort = 1

// Server runs the wake cycle. Everything happens on the calling goroutine;
// the MAC completion channels are the only synchronization points.
type Server struct {
	conf     config.Config
	bootTime time.Time

	state *session.State
	sched *scheduler.UplinkScheduler
}

// NewServer creates a Server. bootTime is the process start time, used to
// account the awake phase against the transmit interval.
func NewServer(c config.Config, bootTime time.Time) *Server {
	return &Server{
		conf:     c,
		bootTime: bootTime,
		sched:    scheduler.New(c),
	}
}

// Run executes one wake cycle. On success it does not return: the cycle ends
// in deep sleep and the next wake is a fresh boot. An error return means the
// cycle could not complete and the device state was left consistent.
func (s *Server) Run() error {
	log.WithField("time", rtc.Now()).Info("uplink: wake cycle started")

	state, err := session.Reconcile(s.conf, storage.Durable(), storage.Retained())
	if err != nil {
		return errors.Wrap(err, "reconcile session error")
	}
	s.state = state

	if err := s.activate(); err != nil {
		return err
	}

	if err := s.transmit(); err != nil {
		return err
	}

	// Counters are durable/retained-consistent at this point; losing power
	// state is safe now.
	power.Enter(s.sched.SleepDuration(time.Since(s.bootTime)))
	return nil
}

// activate brings the MAC stack into a transmit-ready session, either by a
// fresh OTAA join or by resuming the reconciled session.
func (s *Server) activate() error {
	// The MAC stack does not know the regional channel plan; the enabled
	// uplink channels travel with every activation.
	channels := band.Band().GetEnabledUplinkChannelIndices()

	if !s.state.FreshJoin() {
		sess := s.state.Session()
		sess.EnabledChannels = channels
		if err := mac.Backend().SetSession(sess); err != nil {
			return errors.Wrap(err, "set session error")
		}
		log.WithField("f_cnt_up", s.state.FCntUp()).Info("uplink: session resumed")
		return nil
	}

	err := mac.Backend().Join(mac.JoinParameters{
		DevEUI:          s.conf.Device.DevEUI,
		JoinEUI:         s.conf.Device.JoinEUI,
		AppKey:          s.conf.Device.AppKey,
		EnabledChannels: channels,
	})
	if err != nil {
		return errors.Wrap(err, "join error")
	}

	// The MAC stack owns join retries; the only recognized outcome is a
	// completed join.
	sess := <-mac.Backend().JoinCompleteChan()
	if err := s.state.HandleJoinComplete(sess); err != nil {
		return errors.Wrap(err, "handle join complete error")
	}
	log.WithField("dev_addr", sess.DevAddr).Info("uplink: joined")

	return nil
}

// transmit queues one uplink and waits for its completion event. The frame
// counter advances whether or not the network acknowledged.
func (s *Server) transmit() error {
	payload := []byte(fmt.Sprintf("Test %d", s.state.FCntUp()))
	if err := mac.Backend().Transmit(uplinkFPort, payload); err != nil {
		return errors.Wrap(err, "transmit error")
	}

	fCnt := <-mac.Backend().TransmitCompleteChan()
	if err := s.state.HandleTransmitComplete(fCnt); err != nil {
		return errors.Wrap(err, "handle transmit complete error")
	}

	return nil
}
