package cmd

import (
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/brocaar/chirpstack-sleepy-node/internal/config"
	"github.com/brocaar/chirpstack-sleepy-node/internal/storage"
)

var printSessionCmd = &cobra.Command{
	Use:   "print-session",
	Short: "Print the stored device-session as JSON (for debugging)",
	Run: func(cmd *cobra.Command, args []string) {
		if err := storage.Setup(config.C); err != nil {
			log.Fatal(err)
		}

		ds, err := storage.GetDeviceSession(storage.Durable())
		if err != nil {
			log.WithError(err).Fatal("get device-session error")
		}

		b, err := json.MarshalIndent(ds, "", "    ")
		if err != nil {
			log.WithError(err).Fatal("json marshal error")
		}

		fmt.Println(string(b))
	},
}
