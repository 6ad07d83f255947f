package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/hideshare/hideshare/internal/config"
	"github.com/spf13/cobra"
)

// Cfg is the global variable that will contain the loaded configuration.
// It is accessible to all Cobra commands throughout the application.
var Cfg *config.Config

// RootCmd is the base command for the CLI application.
// All other commands (upload, run-server, info, migrate) are added as subcommands.
var RootCmd = &cobra.Command{
	Use:   "hideshare",
	Short: "An ephemeral file sharing service",
	Long: `hideshare lets you upload a file and hand out a time-limited,
optionally password-protected, optionally download-count-limited link.
Expired and used-up links are swept away by a background reaper.`,
}

// Execute is the main entry point for the Cobra application.
// It is called from 'main.go' and handles command execution and error handling.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

// init sets up the configuration initialization hook.
// Commands like 'run-server', 'upload', 'info' and 'migrate' register
// themselves via their own init() functions; this keeps the command tree
// modular and prevents import cycles.
func init() {
	cobra.OnInitialize(initConfig)
}

// initConfig loads the application configuration before any command runs,
// thanks to the cobra.OnInitialize hook above.
func initConfig() {
	var err error

	Cfg, err = config.LoadConfig()
	if err != nil {
		log.Printf("Warning: Problem loading configuration: %v. Using default values.", err)
	}
}
