package storage

import (
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// EEPROMSize defines the number of bytes reserved in the durable store.
const EEPROMSize = 256

// DurableStore is the interface of the wear-limited persistent store. It
// survives full power loss, but every written byte costs an erase cycle, so
// calling code must keep write frequency low.
type DurableStore interface {
	Read(offset, length int) ([]byte, error) // read length bytes at offset
	Write(offset int, b byte) error          // write a single byte at offset
}

// EEPROM implements DurableStore on top of a fixed-size file, e.g. an EEPROM
// sysfs node or an emulation file. Writes use update semantics: a byte that
// already holds the requested value is not rewritten, so saving an unchanged
// record costs no erase cycles.
type EEPROM struct {
	f    *os.File
	size int

	// ByteWrites counts the bytes actually written, i.e. the consumed
	// erase cycles.
	ByteWrites int
}

// OpenEEPROM opens the durable store at the given path, extending the file
// to size bytes when needed. New space reads as 0xff, matching erased flash.
func OpenEEPROM(path string, size int) (*EEPROM, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, errors.Wrap(err, "open error")
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "stat error")
	}

	if fi.Size() < int64(size) {
		erased := make([]byte, int64(size)-fi.Size())
		for i := range erased {
			erased[i] = 0xff
		}
		if _, err := f.WriteAt(erased, fi.Size()); err != nil {
			f.Close()
			return nil, errors.Wrap(err, "extend error")
		}
	}

	log.WithFields(log.Fields{
		"path": path,
		"size": size,
	}).Info("storage: eeprom opened")

	return &EEPROM{f: f, size: size}, nil
}

// Read implements DurableStore.
func (e *EEPROM) Read(offset, length int) ([]byte, error) {
	if offset < 0 || length < 0 || offset+length > e.size {
		return nil, ErrOutOfRange
	}

	b := make([]byte, length)
	if _, err := e.f.ReadAt(b, int64(offset)); err != nil {
		return nil, errors.Wrap(err, "read at error")
	}
	return b, nil
}

// Write implements DurableStore.
func (e *EEPROM) Write(offset int, b byte) error {
	if offset < 0 || offset >= e.size {
		return ErrOutOfRange
	}

	cur := make([]byte, 1)
	if _, err := e.f.ReadAt(cur, int64(offset)); err != nil {
		return errors.Wrap(err, "read at error")
	}
	if cur[0] == b {
		return nil
	}

	if _, err := e.f.WriteAt([]byte{b}, int64(offset)); err != nil {
		return errors.Wrap(err, "write at error")
	}
	e.ByteWrites++

	return nil
}

// Sync flushes pending writes to the underlying device.
func (e *EEPROM) Sync() error {
	return e.f.Sync()
}

// Close closes the underlying file.
func (e *EEPROM) Close() error {
	return e.f.Close()
}
