package storage

import (
	"encoding/binary"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Retained register slots. The numbering matches the backup registers of the
// RTC domain, which retain their value across deep sleep but not across full
// power removal.
const (
	SlotDataValid = 10 // sentinel confirming the slots were initialized
	SlotFCntUp    = 11 // fast-path mirror of the uplink frame counter
	SlotTXCount   = 12 // transmits completed since the last fresh join
)

// RetainedRegisterCount defines the number of available register slots.
const RetainedRegisterCount = 32

// RetainedStore is the interface of the retained register file: u32 slots
// that survive deep sleep and most resets, are cheap to write, but lose
// their content on full power loss.
type RetainedStore interface {
	Get(slot int) (uint32, error)
	Set(slot int, v uint32) error
}

// RetainedRegisters implements RetainedStore on top of a small fixed-size
// file. The file is expected to live on memory-backed storage (tmpfs or a
// mapped retained-RAM region) so that its lifetime matches the backup
// domain: it survives the sleep/wake transition and is gone after power
// removal.
type RetainedRegisters struct {
	f *os.File
}

// OpenRetainedRegisters opens the retained register file at the given path.
// A missing file is created zeroed; a zero sentinel slot reads as invalid,
// which is exactly the post-power-loss state.
func OpenRetainedRegisters(path string) (*RetainedRegisters, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, errors.Wrap(err, "open error")
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "stat error")
	}

	size := int64(RetainedRegisterCount * 4)
	if fi.Size() < size {
		if err := f.Truncate(size); err != nil {
			f.Close()
			return nil, errors.Wrap(err, "truncate error")
		}
	}

	log.WithField("path", path).Info("storage: retained registers opened")

	return &RetainedRegisters{f: f}, nil
}

// Get implements RetainedStore.
func (r *RetainedRegisters) Get(slot int) (uint32, error) {
	if slot < 0 || slot >= RetainedRegisterCount {
		return 0, ErrOutOfRange
	}

	b := make([]byte, 4)
	if _, err := r.f.ReadAt(b, int64(slot)*4); err != nil {
		return 0, errors.Wrap(err, "read at error")
	}
	return binary.LittleEndian.Uint32(b), nil
}

// Set implements RetainedStore.
func (r *RetainedRegisters) Set(slot int, v uint32) error {
	if slot < 0 || slot >= RetainedRegisterCount {
		return ErrOutOfRange
	}

	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	if _, err := r.f.WriteAt(b, int64(slot)*4); err != nil {
		return errors.Wrap(err, "write at error")
	}
	return nil
}

// Close closes the underlying file.
func (r *RetainedRegisters) Close() error {
	return r.f.Close()
}
