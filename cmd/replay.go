package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kaelstrom/packetcore/internal/config"
	"github.com/kaelstrom/packetcore/internal/dissect/proto"
	"github.com/kaelstrom/packetcore/internal/filter"
	"github.com/kaelstrom/packetcore/internal/log"
	"github.com/kaelstrom/packetcore/internal/packet"
	"github.com/kaelstrom/packetcore/internal/session"
	"github.com/kaelstrom/packetcore/internal/source/pcapsource"
)

var replayConfigFile string

var replayCmd = &cobra.Command{
	Use:   "replay <capture-file>",
	Short: "Dissect a capture file standalone, without a daemon",
	Long: `Replay reads a single capture file through the same dissector chain
the daemon runs, without needing a config file or a running control
socket. It runs until interrupted (Ctrl-C or SIGTERM) and does not exit
on its own when the file has been read; final counters are printed on
exit.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReplay(args[0])
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayConfigFile, "config", "", "static session config file (yaml); optional")
	rootCmd.AddCommand(replayCmd)
}

func runReplay(capFile string) error {
	sc := config.SessionConfig{Namespace: "replay", Threads: 4, Snaplen: 65535}
	logCfg := config.LogConfig{Level: "info", Format: "text"}
	if replayConfigFile != "" {
		cfg, err := config.LoadStatic(replayConfigFile)
		if err != nil {
			return fmt.Errorf("load static config: %w", err)
		}
		sc = cfg.Session
		if sc.Namespace == "" {
			sc.Namespace = "replay"
		}
		logCfg = cfg.Log
	}

	log.InitConsole(log.ConsoleConfig{Level: logCfg.Level, FullTimestamp: true})

	src := pcapsource.Offline(capFile)
	sess := session.New(session.Config{
		Namespace:    sc.Namespace,
		Threads:      sc.Threads,
		Dissectors:   proto.NewChain(sc.Namespace),
		Source:       src,
		FilterScript: filter.Compile,
	})
	sess.SetLogCallback(func(msgs []packet.LogMessage) {
		for _, m := range msgs {
			log.PrintLogMessage(m)
		}
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sess.Run(ctx)
	for name, expr := range sc.Filters {
		if err := sess.AddFilter(name, expr); err != nil {
			log.GetLogger().Warnf("filter %q rejected: %v", name, err)
		}
	}
	if err := sess.StartCapture(); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}

	<-ctx.Done()
	sess.StopCapture()
	sess.Shutdown()

	out, err := json.MarshalIndent(sess.Stats(), "", "  ")
	if err != nil {
		return fmt.Errorf("format stats: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
