package storage

import (
	"github.com/pkg/errors"

	"github.com/brocaar/chirpstack-sleepy-node/internal/config"
)

var (
	durableStore  DurableStore
	retainedStore RetainedStore
)

// Setup configures the storage backends.
func Setup(c config.Config) error {
	ee, err := OpenEEPROM(c.Storage.EEPROMPath, EEPROMSize)
	if err != nil {
		return errors.Wrap(err, "open eeprom error")
	}
	durableStore = ee

	rr, err := OpenRetainedRegisters(c.Storage.RetainedPath)
	if err != nil {
		return errors.Wrap(err, "open retained registers error")
	}
	retainedStore = rr

	return nil
}

// Durable returns the durable store backend.
func Durable() DurableStore {
	return durableStore
}

// SetDurable sets the given durable store backend.
func SetDurable(s DurableStore) {
	durableStore = s
}

// Retained returns the retained store backend.
func Retained() RetainedStore {
	return retainedStore
}

// SetRetained sets the given retained store backend.
func SetRetained(s RetainedStore) {
	retainedStore = s
}
