package cmd

import (
	"os"
	"text/template"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/brocaar/chirpstack-sleepy-node/internal/config"
)

const configTemplate = `[general]
# Log level
#
# debug=5, info=4, warning=3, error=2, fatal=1, panic=0
log_level={{ .General.LogLevel }}


# Device settings.
[device]
# Join mode.
#
# Valid options are:
# * otaa - join the network over the air; the assigned session is stored
#          and resumed on the next wake cycles
# * abp  - use the pre-provisioned session below directly
join_mode="{{ .Device.JoinMode }}"

# Device EUI (OTAA), hex encoded.
dev_eui="{{ .Device.DevEUIString }}"

# Join EUI (OTAA), hex encoded.
join_eui="{{ .Device.JoinEUIString }}"

# Application key (OTAA), hex encoded.
app_key="{{ .Device.AppKeyString }}"

# Device address (ABP), hex encoded.
dev_addr="{{ .Device.DevAddrString }}"

# Network session key (ABP), hex encoded.
nwk_s_key="{{ .Device.NwkSKeyString }}"

# Application session key (ABP), hex encoded.
app_s_key="{{ .Device.AppSKeyString }}"

# Transmit interval in seconds.
#
# The node wakes, transmits one uplink and sleeps for the remainder of this
# interval.
tx_interval_sec={{ .Device.TXIntervalSec }}

# Rejoin limit.
#
# After this number of resumed transmits a fresh over-the-air join is forced.
# This is an escape hatch in case the stored session got broken on the
# network side (key lost, device purged, ...).
rejoin_limit={{ .Device.RejoinLimit }}

# Sleep guard time.
#
# Margin subtracted from the computed sleep duration so the last log lines
# can flush before power state is lost.
sleep_guard_time="{{ .Device.SleepGuardTime }}"


# LoRaWAN band configuration.
[band]
# Name of the band.
#
# Valid options are:
# AS923, AS923-2, AS923-3, AS923-4, AU915, CN470, CN779, EU433, EU868,
# IN865, KR920, RU864, US915
name="{{ .Band.Name }}"

# Enforce 400ms dwell time.
uplink_dwell_time_400ms={{ .Band.UplinkDwellTime400ms }}

# The device is repeater compatible.
repeater_compatible={{ .Band.RepeaterCompatible }}


# External MAC stack settings.
[mac]
# Unix domain socket of the LoRaWAN modem daemon.
socket_path="{{ .MAC.SocketPath }}"


# Storage settings.
[storage]
# Path of the durable (EEPROM) store.
#
# Survives full power loss. Wear-limited: the node writes it rarely.
eeprom_path="{{ .Storage.EEPROMPath }}"

# Path of the retained register file.
#
# Must live on memory-backed storage (tmpfs / retained RAM) so that its
# lifetime matches the RTC backup domain: it survives deep sleep, but not
# power removal.
retained_path="{{ .Storage.RetainedPath }}"

# Path of the RTC wall-clock state.
rtc_path="{{ .Storage.RTCPath }}"
`

var configCmd = &cobra.Command{
	Use:   "configfile",
	Short: "Print the ChirpStack Sleepy Node configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		t := template.Must(template.New("config").Parse(configTemplate))
		err := t.Execute(os.Stdout, &config.C)
		if err != nil {
			return errors.Wrap(err, "execute config template error")
		}
		return nil
	},
}
