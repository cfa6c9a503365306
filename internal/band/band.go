package band

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/brocaar/chirpstack-sleepy-node/internal/config"
	"github.com/brocaar/lorawan"
	loraband "github.com/brocaar/lorawan/band"
)

var band loraband.Band

// Setup sets up the band with the given configuration.
func Setup(c config.Config) error {
	dwellTime := lorawan.DwellTimeNoLimit
	if c.Band.UplinkDwellTime400ms {
		dwellTime = lorawan.DwellTime400ms
	}

	bandConfig, err := loraband.GetConfig(c.Band.Name, c.Band.RepeaterCompatible, dwellTime)
	if err != nil {
		return errors.Wrap(err, "get band config error")
	}
	band = bandConfig

	if c.Band.Name == loraband.AU915 {
		if err := maskChannels(8, 15); err != nil {
			return errors.Wrap(err, "mask channels error")
		}
	}

	log.WithField("band", c.Band.Name).Info("band: configured")

	return nil
}

// Band returns the configured band.
func Band() loraband.Band {
	return band
}

// maskChannels disables every enabled uplink channel outside the given
// inclusive index window. AU915 gateways on The Things Network only listen
// on sub-band 2 (channels 8..15); transmitting on the other 64 channels
// would be lost air-time.
func maskChannels(min, max int) error {
	for _, c := range band.GetEnabledUplinkChannelIndices() {
		if c >= min && c <= max {
			continue
		}
		if err := band.DisableUplinkChannelIndex(c); err != nil {
			return errors.Wrap(err, "disable uplink channel error")
		}
	}

	log.WithFields(log.Fields{
		"min": min,
		"max": max,
	}).Info("band: uplink channels masked")

	return nil
}
