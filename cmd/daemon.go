package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kaelstrom/packetcore/internal/config"
	"github.com/kaelstrom/packetcore/internal/control"
	"github.com/kaelstrom/packetcore/internal/dissect/proto"
	"github.com/kaelstrom/packetcore/internal/filter"
	"github.com/kaelstrom/packetcore/internal/liveview"
	"github.com/kaelstrom/packetcore/internal/log"
	"github.com/kaelstrom/packetcore/internal/metrics"
	"github.com/kaelstrom/packetcore/internal/session"
	"github.com/kaelstrom/packetcore/internal/source/afpacket"
	"github.com/kaelstrom/packetcore/internal/source/pcapsource"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the packetcore daemon in the foreground",
	Long: `Run the packetcore daemon process in the foreground.

The daemon loads its configuration, brings up one Session per configured
namespace, starts the control socket the CLI talks to, and serves the
stats endpoint, until it receives SIGTERM/SIGINT.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon()
	},
}

func runDaemon() error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := log.Init(cfg.Log); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	if err := os.WriteFile(cfg.Control.PIDFile, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(cfg.Control.PIDFile)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ctrl := control.NewServer(cfg.Control.Socket)
	bridge := liveview.NewBridge()
	for _, sc := range cfg.Sessions {
		sess := buildSession(sc)
		sess.Run(ctx)
		ctrl.Register(sc.Namespace, sess)
		bridge.Attach(sc.Namespace, sess)
		for name, expr := range sc.Filters {
			if err := sess.AddFilter(name, expr); err != nil {
				log.GetLogger().WithField("namespace", sc.Namespace).Warnf("filter %q rejected: %v", name, err)
			}
		}
		if err := sess.StartCapture(); err != nil {
			log.GetLogger().WithField("namespace", sc.Namespace).Errorf("start capture: %v", err)
		}
	}
	if err := ctrl.Start(); err != nil {
		return fmt.Errorf("start control server: %w", err)
	}
	defer ctrl.Stop()

	if cfg.Metrics.Enabled {
		metricsSrv := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path)
		if err := metricsSrv.Start(ctx); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		defer metricsSrv.Stop(context.Background())
	}

	if cfg.LiveView.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.LiveView.Path, bridge)
		liveSrv := &http.Server{Addr: cfg.LiveView.Listen, Handler: mux}
		go func() {
			if err := liveSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.GetLogger().Errorf("liveview server: %v", err)
			}
		}()
		go func() {
			<-ctx.Done()
			liveSrv.Close()
		}()
	}

	log.GetLogger().Infof("packetcore daemon listening on %s", cfg.Control.Socket)
	<-ctx.Done()
	log.GetLogger().Info("shutting down")
	return nil
}

func buildSession(sc config.SessionConfig) *session.Session {
	src := newFrameSource(sc)
	return session.New(session.Config{
		Namespace:    sc.Namespace,
		Threads:      sc.Threads,
		Dissectors:   proto.NewChain(sc.Namespace),
		Source:       src,
		Devices:      pcapsource.Devices,
		Permission:   pcapsource.HasPermission,
		FilterScript: filter.Compile,
	})
}

// newFrameSource picks the capture backend named in sc.Backend. pcap
// (libpcap) works everywhere; afpacket (TPACKET_V3) is Linux-only but
// avoids libpcap's extra copy on busy interfaces.
func newFrameSource(sc config.SessionConfig) session.FrameSource {
	switch sc.Backend {
	case "afpacket":
		src := afpacket.New(sc.Interface)
		src.SetPromiscuous(sc.Promiscuous)
		src.SetSnaplen(sc.Snaplen)
		if sc.BPF != "" {
			src.SetBPF(sc.BPF)
		}
		return src
	default:
		src := pcapsource.Live(sc.Interface)
		src.SetPromiscuous(sc.Promiscuous)
		src.SetSnaplen(sc.Snaplen)
		if sc.BPF != "" {
			src.SetBPF(sc.BPF)
		}
		return src
	}
}
