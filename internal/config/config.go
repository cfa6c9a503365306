package config

import (
	"time"

	"github.com/brocaar/lorawan"
	"github.com/brocaar/lorawan/band"
)

// Version defines the chirpstack-sleepy-node version.
var Version string

// JoinMode defines the activation mode of the device.
type JoinMode string

// Available join modes.
const (
	JoinModeOTAA JoinMode = "otaa"
	JoinModeABP  JoinMode = "abp"
)

// Config defines the configuration structure.
type Config struct {
	General struct {
		LogLevel int `mapstructure:"log_level"`
	} `mapstructure:"general"`

	Device struct {
		JoinMode       JoinMode      `mapstructure:"join_mode"`
		DevEUIString   string        `mapstructure:"dev_eui"`
		JoinEUIString  string        `mapstructure:"join_eui"`
		AppKeyString   string        `mapstructure:"app_key"`
		DevAddrString  string        `mapstructure:"dev_addr"`
		NwkSKeyString  string        `mapstructure:"nwk_s_key"`
		AppSKeyString  string        `mapstructure:"app_s_key"`
		TXIntervalSec  int           `mapstructure:"tx_interval_sec"`
		RejoinLimit    uint32        `mapstructure:"rejoin_limit"`
		SleepGuardTime time.Duration `mapstructure:"sleep_guard_time"`

		// decoded from the *String fields above
		DevEUI  lorawan.EUI64     `mapstructure:"-"`
		JoinEUI lorawan.EUI64     `mapstructure:"-"`
		AppKey  lorawan.AES128Key `mapstructure:"-"`
		DevAddr lorawan.DevAddr   `mapstructure:"-"`
		NwkSKey lorawan.AES128Key `mapstructure:"-"`
		AppSKey lorawan.AES128Key `mapstructure:"-"`
	} `mapstructure:"device"`

	Band struct {
		Name                 band.Name `mapstructure:"name"`
		UplinkDwellTime400ms bool      `mapstructure:"uplink_dwell_time_400ms"`
		RepeaterCompatible   bool      `mapstructure:"repeater_compatible"`
	} `mapstructure:"band"`

	MAC struct {
		SocketPath string `mapstructure:"socket_path"`
	} `mapstructure:"mac"`

	Storage struct {
		EEPROMPath   string `mapstructure:"eeprom_path"`
		RetainedPath string `mapstructure:"retained_path"`
		RTCPath      string `mapstructure:"rtc_path"`
	} `mapstructure:"storage"`
}

// C holds the global configuration.
var C Config

// Get returns the configuration.
func Get() *Config {
	return &C
}

// Set sets the configuration.
func Set(c Config) {
	C = c
}
