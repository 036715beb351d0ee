package cmd

import (
	"encoding/json"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kaelstrom/packetcore/internal/control"
)

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Manage named filter groups on a running session",
}

var filterAddCmd = &cobra.Command{
	Use:   "add <name> <expr>",
	Short: "Install or replace a named filter",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := control.NewClient(socketPath)
		resp, err := client.Call(control.Request{
			Command:   control.CommandFilterAdd,
			Namespace: namespace,
			Args:      map[string]string{"name": args[0], "expr": args[1]},
		})
		if err != nil {
			exitWithError("daemon is not running or socket is inaccessible", err)
		}
		if !resp.Success {
			exitWithError(resp.Message, nil)
		}
		cmd.Println("filter installed")
		return nil
	},
}

var filterRMCmd = &cobra.Command{
	Use:   "rm <name>",
	Short: "Remove a named filter",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := control.NewClient(socketPath)
		resp, err := client.Call(control.Request{
			Command:   control.CommandFilterRM,
			Namespace: namespace,
			Args:      map[string]string{"name": args[0]},
		})
		if err != nil {
			exitWithError("daemon is not running or socket is inaccessible", err)
		}
		if !resp.Success {
			exitWithError(resp.Message, nil)
		}
		cmd.Println("filter removed")
		return nil
	},
}

var (
	filterRangeStart uint32
	filterRangeEnd   uint32
)

var filterGetCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "List the sequence numbers a named filter has matched",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := control.NewClient(socketPath)
		resp, err := client.Call(control.Request{
			Command:   control.CommandGetFiltered,
			Namespace: namespace,
			Args: map[string]string{
				"name":  args[0],
				"start": strconv.FormatUint(uint64(filterRangeStart), 10),
				"end":   strconv.FormatUint(uint64(filterRangeEnd), 10),
			},
		})
		if err != nil {
			exitWithError("daemon is not running or socket is inaccessible", err)
		}
		if !resp.Success {
			exitWithError(resp.Message, nil)
		}
		out, err := json.Marshal(resp.Filter)
		if err != nil {
			exitWithError("failed to format result", err)
		}
		cmd.Println(string(out))
		return nil
	},
}

func init() {
	filterGetCmd.Flags().Uint32Var(&filterRangeStart, "start", 0, "range start sequence (inclusive)")
	filterGetCmd.Flags().Uint32Var(&filterRangeEnd, "end", 0, "range end sequence (exclusive, 0 = current max)")

	filterCmd.AddCommand(filterAddCmd)
	filterCmd.AddCommand(filterRMCmd)
	filterCmd.AddCommand(filterGetCmd)
}
