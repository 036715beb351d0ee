// Package cmd implements the packetcore CLI using cobra.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configFile string
	socketPath string
	namespace  string
)

var rootCmd = &cobra.Command{
	Use:   "packetcore",
	Short: "packetcore captures and dissects network traffic at the edge",
	Long: `packetcore is a concurrent packet capture and dissection core.

It pulls frames from a live interface or capture file, runs them through
a dissector chain, and exposes the decoded packets, reassembled streams
and named filter results through a local control socket.`,
	Version: "0.1.0",
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "/etc/packetcore/config.yaml",
		"daemon config file path")
	rootCmd.PersistentFlags().StringVarP(&socketPath, "socket", "s", "/var/run/packetcore.sock",
		"control socket path")
	rootCmd.PersistentFlags().StringVarP(&namespace, "namespace", "n", "default",
		"session namespace to address")

	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(filterCmd)
	rootCmd.AddCommand(devicesCmd)
}

func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
