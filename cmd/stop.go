package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kaelstrom/packetcore/internal/control"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop capture on a running session",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := control.NewClient(socketPath)
		resp, err := client.Call(control.Request{Command: control.CommandStop, Namespace: namespace})
		if err != nil {
			exitWithError("daemon is not running or socket is inaccessible", err)
		}
		if !resp.Success {
			exitWithError(resp.Message, nil)
		}
		cmd.Println("capture stopped")
		return nil
	},
}
