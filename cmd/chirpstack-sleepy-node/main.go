package main

import (
	"github.com/brocaar/chirpstack-sleepy-node/cmd/chirpstack-sleepy-node/cmd"
)

// set by the compiler
var version string

func main() {
	cmd.Execute(version)
}
