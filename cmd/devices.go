package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/kaelstrom/packetcore/internal/control"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List capturable network interfaces",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := control.NewClient(socketPath)
		resp, err := client.Call(control.Request{Command: control.CommandDevices})
		if err != nil {
			exitWithError("daemon is not running or socket is inaccessible", err)
		}
		if !resp.Success {
			exitWithError(resp.Message, nil)
		}
		out, err := json.MarshalIndent(resp.Devices, "", "  ")
		if err != nil {
			exitWithError("failed to format result", err)
		}
		cmd.Println(string(out))
		return nil
	},
}
