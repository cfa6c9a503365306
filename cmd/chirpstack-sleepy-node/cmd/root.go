package cmd

import (
	"bytes"
	"os"

	"github.com/mitchellh/mapstructure"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/brocaar/chirpstack-sleepy-node/internal/config"
)

var cfgFile string
var version string

var rootCmd = &cobra.Command{
	Use:   "chirpstack-sleepy-node",
	Short: "ChirpStack Sleepy Node",
	Long: `ChirpStack Sleepy Node is a battery-powered LoRaWAN end-node agent that
preserves its network session across deep-sleep and power cycles
	> documentation & support: https://www.chirpstack.io/
	> source & copyright information: https://github.com/brocaar/chirpstack-sleepy-node/`,
	RunE: run,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to configuration file (optional)")
	rootCmd.PersistentFlags().Int("log-level", 4, "debug=5, info=4, error=2, fatal=1, panic=0")

	viper.BindPFlag("general.log_level", rootCmd.PersistentFlags().Lookup("log-level"))

	// default values
	viper.SetDefault("device.join_mode", "otaa")
	viper.SetDefault("device.tx_interval_sec", 60)
	viper.SetDefault("device.rejoin_limit", 300)
	viper.SetDefault("device.sleep_guard_time", "50ms")

	viper.SetDefault("band.name", "EU868")

	viper.SetDefault("mac.socket_path", "/run/chirpstack-sleepy-node/mac.sock")

	viper.SetDefault("storage.eeprom_path", "/var/lib/chirpstack-sleepy-node/eeprom.bin")
	viper.SetDefault("storage.retained_path", "/dev/shm/chirpstack-sleepy-node-retained.bin")
	viper.SetDefault("storage.rtc_path", "/var/lib/chirpstack-sleepy-node/rtc.bin")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(printSessionCmd)
}

// Execute executes the root command.
func Execute(v string) {
	version = v

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func initConfig() {
	config.Version = version

	if cfgFile != "" {
		b, err := os.ReadFile(cfgFile)
		if err != nil {
			log.WithError(err).WithField("config", cfgFile).Fatal("error loading config file")
		}
		viper.SetConfigType("toml")
		if err := viper.ReadConfig(bytes.NewBuffer(b)); err != nil {
			log.WithError(err).WithField("config", cfgFile).Fatal("error loading config file")
		}
	} else {
		viper.SetConfigName("chirpstack-sleepy-node")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.config/chirpstack-sleepy-node")
		viper.AddConfigPath("/etc/chirpstack-sleepy-node")
		if err := viper.ReadInConfig(); err != nil {
			switch err.(type) {
			case viper.ConfigFileNotFoundError:
				log.Warning("No configuration file found, using defaults.")
			default:
				log.WithError(err).Fatal("read configuration file error")
			}
		}
	}

	viperHooks := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)

	if err := viper.Unmarshal(&config.C, viper.DecodeHook(viperHooks)); err != nil {
		log.WithError(err).Fatal("unmarshal config error")
	}

	if err := decodeDeviceIdentity(); err != nil {
		log.WithError(err).Fatal("decode device identity error")
	}
}

// decodeDeviceIdentity decodes the hex encoded identity and key fields into
// their lorawan types. Fields that are not set for the configured join mode
// stay zero.
func decodeDeviceIdentity() error {
	d := &config.C.Device

	fields := []struct {
		s string
		v interface{ UnmarshalText([]byte) error }
	}{
		{d.DevEUIString, &d.DevEUI},
		{d.JoinEUIString, &d.JoinEUI},
		{d.AppKeyString, &d.AppKey},
		{d.DevAddrString, &d.DevAddr},
		{d.NwkSKeyString, &d.NwkSKey},
		{d.AppSKeyString, &d.AppSKey},
	}

	for _, f := range fields {
		if f.s == "" {
			continue
		}
		if err := f.v.UnmarshalText([]byte(f.s)); err != nil {
			return err
		}
	}

	return nil
}
