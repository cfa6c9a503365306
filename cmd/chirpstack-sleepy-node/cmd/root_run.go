package cmd

import (
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/brocaar/chirpstack-sleepy-node/internal/backend/mac"
	"github.com/brocaar/chirpstack-sleepy-node/internal/backend/mac/extstack"
	"github.com/brocaar/chirpstack-sleepy-node/internal/band"
	"github.com/brocaar/chirpstack-sleepy-node/internal/config"
	"github.com/brocaar/chirpstack-sleepy-node/internal/rtc"
	"github.com/brocaar/chirpstack-sleepy-node/internal/storage"
	"github.com/brocaar/chirpstack-sleepy-node/internal/uplink"
)

func run(cmd *cobra.Command, args []string) error {
	bootTime := time.Now()

	tasks := []func() error{
		setLogLevel,
		printStartMessage,
		setupBand,
		setupStorage,
		setupRTC,
		setupMACBackend,
	}

	for _, t := range tasks {
		if err := t(); err != nil {
			log.Fatal(err)
		}
	}

	// Run ends in deep sleep and does not return; an error means the wake
	// cycle could not complete.
	server := uplink.NewServer(config.C, bootTime)
	if err := server.Run(); err != nil {
		log.Fatal(err)
	}

	return nil
}

func setLogLevel() error {
	log.SetLevel(log.Level(uint8(config.C.General.LogLevel)))
	return nil
}

func printStartMessage() error {
	log.WithFields(log.Fields{
		"version": version,
		"docs":    "https://www.chirpstack.io/",
	}).Info("starting ChirpStack Sleepy Node")
	return nil
}

func setupBand() error {
	if err := band.Setup(config.C); err != nil {
		return errors.Wrap(err, "setup band error")
	}
	return nil
}

func setupStorage() error {
	if err := storage.Setup(config.C); err != nil {
		return errors.Wrap(err, "setup storage error")
	}
	return nil
}

func setupRTC() error {
	if err := rtc.Setup(config.C); err != nil {
		return errors.Wrap(err, "setup rtc error")
	}
	return nil
}

func setupMACBackend() error {
	b, err := extstack.NewBackend(config.C)
	if err != nil {
		return errors.Wrap(err, "setup mac backend error")
	}
	mac.SetBackend(b)
	return nil
}
