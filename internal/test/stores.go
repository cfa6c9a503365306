package test

import (
	"github.com/brocaar/chirpstack-sleepy-node/internal/storage"
)

// DurableStoreMemory is an in-memory durable store. Writes counts the bytes
// actually written, so tests can assert on wear.
type DurableStoreMemory struct {
	Data   []byte
	Writes int
}

// NewDurableStoreMemory returns a new in-memory durable store with all bytes
// in the erased (0xff) state.
func NewDurableStoreMemory() *DurableStoreMemory {
	d := DurableStoreMemory{Data: make([]byte, storage.EEPROMSize)}
	for i := range d.Data {
		d.Data[i] = 0xff
	}
	return &d
}

// Read method.
func (d *DurableStoreMemory) Read(offset, length int) ([]byte, error) {
	if offset < 0 || length < 0 || offset+length > len(d.Data) {
		return nil, storage.ErrOutOfRange
	}
	b := make([]byte, length)
	copy(b, d.Data[offset:offset+length])
	return b, nil
}

// Write method.
func (d *DurableStoreMemory) Write(offset int, b byte) error {
	if offset < 0 || offset >= len(d.Data) {
		return storage.ErrOutOfRange
	}
	if d.Data[offset] == b {
		return nil
	}
	d.Data[offset] = b
	d.Writes++
	return nil
}

// RetainedStoreMemory is an in-memory retained store. Invalidate simulates
// full power loss.
type RetainedStoreMemory struct {
	Slots [storage.RetainedRegisterCount]uint32
}

// NewRetainedStoreMemory returns a new in-memory retained store with all
// slots zeroed, i.e. the post-power-loss state.
func NewRetainedStoreMemory() *RetainedStoreMemory {
	return &RetainedStoreMemory{}
}

// Get method.
func (r *RetainedStoreMemory) Get(slot int) (uint32, error) {
	if slot < 0 || slot >= len(r.Slots) {
		return 0, storage.ErrOutOfRange
	}
	return r.Slots[slot], nil
}

// Set method.
func (r *RetainedStoreMemory) Set(slot int, v uint32) error {
	if slot < 0 || slot >= len(r.Slots) {
		return storage.ErrOutOfRange
	}
	r.Slots[slot] = v
	return nil
}

// Invalidate zeroes all slots, simulating full power removal.
func (r *RetainedStoreMemory) Invalidate() {
	r.Slots = [storage.RetainedRegisterCount]uint32{}
}
