package test

import (
	log "github.com/sirupsen/logrus"

	"github.com/brocaar/chirpstack-sleepy-node/internal/config"
	"github.com/brocaar/lorawan"
	loraband "github.com/brocaar/lorawan/band"
)

func init() {
	log.SetLevel(log.ErrorLevel)
}

// GetConfig returns the test configuration.
func GetConfig() config.Config {
	var c config.Config
	c.General.LogLevel = int(log.ErrorLevel)
	c.Band.Name = loraband.EU868
	c.Device.JoinMode = config.JoinModeOTAA
	c.Device.TXIntervalSec = 60
	c.Device.RejoinLimit = 300
	c.Device.DevEUI = lorawan.EUI64{1, 2, 3, 4, 5, 6, 7, 8}
	c.Device.JoinEUI = lorawan.EUI64{8, 7, 6, 5, 4, 3, 2, 1}
	c.Device.AppKey = lorawan.AES128Key{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	return c
}
