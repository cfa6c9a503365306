// Package mac defines the interface to the external LoRaWAN MAC/PHY stack.
// The stack owns the join procedure, uplink framing, radio timing and the
// regional channel plan; this node only hands it session parameters and
// consumes its completion events.
package mac

import (
	"github.com/brocaar/lorawan"
)

var backend Stack

// Backend returns the MAC stack backend.
func Backend() Stack {
	return backend
}

// SetBackend sets the given MAC stack backend.
func SetBackend(s Stack) {
	backend = s
}

// Session contains the session parameters negotiated with the network.
// EnabledChannels holds the uplink channel indices of the regional channel
// plan the stack may transmit on.
type Session struct {
	DevAddr         lorawan.DevAddr
	NwkSKey         lorawan.AES128Key
	AppSKey         lorawan.AES128Key
	FCntUp          uint32
	EnabledChannels []int
}

// JoinParameters contains the device identity used for an OTAA join, plus
// the uplink channel indices the join request may be transmitted on.
type JoinParameters struct {
	DevEUI          lorawan.EUI64
	JoinEUI         lorawan.EUI64
	AppKey          lorawan.AES128Key
	EnabledChannels []int
}

// Stack is the interface of the external MAC/PHY stack backend.
//
// Completion events are delivered over channels and are read from the single
// control loop; the stack must not require any other synchronization.
type Stack interface {
	Join(JoinParameters) error                  // start an OTAA join
	SetSession(Session) error                   // activate with an existing session (ABP / session-resume)
	Transmit(fPort uint8, payload []byte) error // queue one uplink
	JoinCompleteChan() chan Session             // session assigned by the network after an OTAA join
	TransmitCompleteChan() chan uint32          // final uplink sequence number per completed transmit
	Close() error                               // close the MAC stack backend
}
