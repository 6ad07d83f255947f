package main

import (
	"github.com/hideshare/hideshare/cmd"

	// Blank imports so the subcommands register themselves on the root
	// command via their init() functions.
	_ "github.com/hideshare/hideshare/cmd/cli"
	_ "github.com/hideshare/hideshare/cmd/server"
)

func main() {
	cmd.Execute()
}
