package test

import (
	"github.com/brocaar/chirpstack-sleepy-node/internal/backend/mac"
)

// MACBackend is a test MAC stack backend.
type MACBackend struct {
	joinCompleteChan     chan mac.Session
	transmitCompleteChan chan uint32

	JoinRequestChan chan mac.JoinParameters
	SessionChan     chan mac.Session
	TransmitChan    chan []byte
}

// NewMACBackend returns a new MACBackend.
func NewMACBackend() *MACBackend {
	return &MACBackend{
		joinCompleteChan:     make(chan mac.Session, 100),
		transmitCompleteChan: make(chan uint32, 100),
		JoinRequestChan:      make(chan mac.JoinParameters, 100),
		SessionChan:          make(chan mac.Session, 100),
		TransmitChan:         make(chan []byte, 100),
	}
}

// Join method.
func (b *MACBackend) Join(p mac.JoinParameters) error {
	b.JoinRequestChan <- p
	return nil
}

// SetSession method.
func (b *MACBackend) SetSession(s mac.Session) error {
	b.SessionChan <- s
	return nil
}

// Transmit method.
func (b *MACBackend) Transmit(fPort uint8, payload []byte) error {
	b.TransmitChan <- payload
	return nil
}

// JoinCompleteChan method.
func (b *MACBackend) JoinCompleteChan() chan mac.Session {
	return b.joinCompleteChan
}

// TransmitCompleteChan method.
func (b *MACBackend) TransmitCompleteChan() chan uint32 {
	return b.transmitCompleteChan
}

// Close method.
func (b *MACBackend) Close() error {
	close(b.joinCompleteChan)
	close(b.transmitCompleteChan)
	return nil
}

// CompleteJoin delivers a join-complete event.
func (b *MACBackend) CompleteJoin(s mac.Session) {
	b.joinCompleteChan <- s
}

// CompleteTransmit delivers a transmit-complete event.
func (b *MACBackend) CompleteTransmit(fCnt uint32) {
	b.transmitCompleteChan <- fCnt
}
