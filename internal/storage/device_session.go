package storage

import (
	"encoding/binary"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/brocaar/lorawan"
)

// DataValidMarker confirms a record was written by this firmware rather than
// being erased or foreign memory. The same sentinel is used for the durable
// record and the retained register file.
const DataValidMarker uint32 = 67329752

// deviceSessionOffset is the EEPROM offset of the device-session record.
const deviceSessionOffset = 0

// deviceSessionLen is the encoded size of the record:
// marker(4) + fcnt(4) + joined(1) + devaddr(4) + nwkskey(16) + appskey(16).
const deviceSessionLen = 45

// DeviceSession defines the durable device-session record. DevAddr, NwkSKey
// and AppSKey are produced together by a single join event and are only ever
// updated together.
type DeviceSession struct {
	FCntUp  uint32
	Joined  bool
	DevAddr lorawan.DevAddr
	NwkSKey lorawan.AES128Key
	AppSKey lorawan.AES128Key
}

// MarshalBinary encodes the device-session to its fixed EEPROM layout.
func (s DeviceSession) MarshalBinary() ([]byte, error) {
	b := make([]byte, deviceSessionLen)
	binary.LittleEndian.PutUint32(b[0:4], DataValidMarker)
	binary.LittleEndian.PutUint32(b[4:8], s.FCntUp)
	if s.Joined {
		b[8] = 1
	}
	copy(b[9:13], s.DevAddr[:])
	copy(b[13:29], s.NwkSKey[:])
	copy(b[29:45], s.AppSKey[:])
	return b, nil
}

// UnmarshalBinary decodes the device-session from its fixed EEPROM layout.
// ErrDoesNotExist is returned when the valid marker does not match.
func (s *DeviceSession) UnmarshalBinary(b []byte) error {
	if len(b) != deviceSessionLen {
		return ErrInvalidLength
	}
	if binary.LittleEndian.Uint32(b[0:4]) != DataValidMarker {
		return ErrDoesNotExist
	}

	s.FCntUp = binary.LittleEndian.Uint32(b[4:8])
	s.Joined = b[8] != 0
	copy(s.DevAddr[:], b[9:13])
	copy(s.NwkSKey[:], b[13:29])
	copy(s.AppSKey[:], b[29:45])
	return nil
}

// SaveDeviceSession saves the device-session to the durable store. The store
// writes byte-at-a-time with update semantics, so only changed bytes consume
// erase cycles.
func SaveDeviceSession(d DurableStore, s DeviceSession) error {
	b, err := s.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "marshal binary error")
	}

	for i, v := range b {
		if err := d.Write(deviceSessionOffset+i, v); err != nil {
			return errors.Wrap(err, "write error")
		}
	}

	log.WithFields(log.Fields{
		"dev_addr": s.DevAddr,
		"f_cnt_up": s.FCntUp,
		"joined":   s.Joined,
	}).Info("storage: device-session saved")

	return nil
}

// GetDeviceSession returns the device-session from the durable store. In case
// the valid marker is absent or wrong, ErrDoesNotExist is returned.
func GetDeviceSession(d DurableStore) (DeviceSession, error) {
	var s DeviceSession

	b, err := d.Read(deviceSessionOffset, deviceSessionLen)
	if err != nil {
		return s, errors.Wrap(err, "read error")
	}

	if err := s.UnmarshalBinary(b); err != nil {
		return s, err
	}
	return s, nil
}
