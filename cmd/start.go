package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kaelstrom/packetcore/internal/control"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start capture on a running session",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := control.NewClient(socketPath)
		resp, err := client.Call(control.Request{Command: control.CommandStart, Namespace: namespace})
		if err != nil {
			exitWithError("daemon is not running or socket is inaccessible", err)
		}
		if !resp.Success {
			exitWithError(resp.Message, nil)
		}
		cmd.Println("capture started")
		return nil
	},
}
