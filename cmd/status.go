package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/kaelstrom/packetcore/internal/control"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a session's capture status and counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := control.NewClient(socketPath)
		resp, err := client.Call(control.Request{Command: control.CommandStatus, Namespace: namespace})
		if err != nil {
			exitWithError("daemon is not running or socket is inaccessible", err)
		}
		if !resp.Success {
			exitWithError(resp.Message, nil)
		}

		out, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			exitWithError("failed to format status", err)
		}
		cmd.Println(string(out))
		return nil
	},
}
