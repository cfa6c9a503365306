// Package extstack provides a MAC stack backend speaking to an external
// LoRaWAN modem daemon over a unix domain socket. The daemon owns the radio,
// the join procedure and all protocol timing; this backend only forwards
// commands and completion events as JSON lines.
package extstack

import (
	"bufio"
	"encoding/json"
	"net"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/brocaar/chirpstack-sleepy-node/internal/backend/mac"
	"github.com/brocaar/chirpstack-sleepy-node/internal/config"
	"github.com/brocaar/lorawan"
)

// command is a JSON line sent to the modem daemon.
type command struct {
	Type string `json:"type"`

	DevEUI  *lorawan.EUI64     `json:"dev_eui,omitempty"`
	JoinEUI *lorawan.EUI64     `json:"join_eui,omitempty"`
	AppKey  *lorawan.AES128Key `json:"app_key,omitempty"`

	DevAddr *lorawan.DevAddr   `json:"dev_addr,omitempty"`
	NwkSKey *lorawan.AES128Key `json:"nwk_s_key,omitempty"`
	AppSKey *lorawan.AES128Key `json:"app_s_key,omitempty"`
	FCntUp  uint32             `json:"f_cnt_up,omitempty"`

	Channels []int `json:"channels,omitempty"`

	FPort   uint8  `json:"f_port,omitempty"`
	Payload []byte `json:"payload,omitempty"`
}

// event is a JSON line received from the modem daemon.
type event struct {
	Type string `json:"type"`

	DevAddr lorawan.DevAddr   `json:"dev_addr"`
	NwkSKey lorawan.AES128Key `json:"nwk_s_key"`
	AppSKey lorawan.AES128Key `json:"app_s_key"`
	FCntUp  uint32            `json:"f_cnt_up"`
}

// eventChanSize is the buffer of the completion-event channels. The control
// loop consumes at most one event per command, so a small buffer absorbs any
// duplicate the daemon emits without stalling the read loop.
const eventChanSize = 10

// Backend implements mac.Stack over the modem daemon socket.
type Backend struct {
	conn net.Conn
	enc  *json.Encoder

	joinCompleteChan     chan mac.Session
	transmitCompleteChan chan uint32
}

// NewBackend creates a new Backend.
func NewBackend(c config.Config) (*Backend, error) {
	conn, err := net.Dial("unix", c.MAC.SocketPath)
	if err != nil {
		return nil, errors.Wrap(err, "dial mac socket error")
	}

	b := Backend{
		conn:                 conn,
		enc:                  json.NewEncoder(conn),
		joinCompleteChan:     make(chan mac.Session, eventChanSize),
		transmitCompleteChan: make(chan uint32, eventChanSize),
	}
	go b.readLoop()

	log.WithField("socket", c.MAC.SocketPath).Info("backend/extstack: connected to mac daemon")

	return &b, nil
}

// Join implements mac.Stack.
func (b *Backend) Join(p mac.JoinParameters) error {
	return b.send(command{
		Type:     "join",
		DevEUI:   &p.DevEUI,
		JoinEUI:  &p.JoinEUI,
		AppKey:   &p.AppKey,
		Channels: p.EnabledChannels,
	})
}

// SetSession implements mac.Stack.
func (b *Backend) SetSession(s mac.Session) error {
	return b.send(command{
		Type:     "set_session",
		DevAddr:  &s.DevAddr,
		NwkSKey:  &s.NwkSKey,
		AppSKey:  &s.AppSKey,
		FCntUp:   s.FCntUp,
		Channels: s.EnabledChannels,
	})
}

// Transmit implements mac.Stack.
func (b *Backend) Transmit(fPort uint8, payload []byte) error {
	return b.send(command{
		Type:    "transmit",
		FPort:   fPort,
		Payload: payload,
	})
}

// JoinCompleteChan implements mac.Stack.
func (b *Backend) JoinCompleteChan() chan mac.Session {
	return b.joinCompleteChan
}

// TransmitCompleteChan implements mac.Stack.
func (b *Backend) TransmitCompleteChan() chan uint32 {
	return b.transmitCompleteChan
}

// Close implements mac.Stack.
func (b *Backend) Close() error {
	return b.conn.Close()
}

func (b *Backend) send(c command) error {
	if err := b.enc.Encode(c); err != nil {
		return errors.Wrap(err, "encode command error")
	}
	return nil
}

func (b *Backend) readLoop() {
	scanner := bufio.NewScanner(b.conn)
	for scanner.Scan() {
		var e event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			log.WithError(err).Error("backend/extstack: unmarshal event error")
			continue
		}

		// A full event channel must not wedge the read loop, or a
		// burst of spurious events from the daemon would block every
		// event after it. Overflowing events are dropped.
		switch e.Type {
		case "join_complete":
			select {
			case b.joinCompleteChan <- mac.Session{
				DevAddr: e.DevAddr,
				NwkSKey: e.NwkSKey,
				AppSKey: e.AppSKey,
				FCntUp:  e.FCntUp,
			}:
			default:
				log.Warning("backend/extstack: join-complete event dropped, no consumer")
			}
		case "transmit_complete":
			select {
			case b.transmitCompleteChan <- e.FCntUp:
			default:
				log.WithField("f_cnt_up", e.FCntUp).Warning("backend/extstack: transmit-complete event dropped, no consumer")
			}
		default:
			log.WithField("type", e.Type).Warning("backend/extstack: unexpected event")
		}
	}

	if err := scanner.Err(); err != nil {
		log.WithError(err).Error("backend/extstack: read error")
	}
}
