package log

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/mgutz/ansi"

	"github.com/kaelstrom/packetcore/internal/packet"
)

var levelColors = map[packet.LogLevel]string{
	packet.LogLevelDebug: "cyan",
	packet.LogLevelInfo:  "green",
	packet.LogLevelWarn:  "yellow",
	packet.LogLevelError: "red+b",
}

// PrintLogMessage writes one Session LogMessage to stdout, colorized by
// level when stdout is a terminal. This is the CLI's rendering of the
// host-facing logCallback stream, kept distinct from both slog (operator
// log) and the console Logger (CLI's own messages).
func PrintLogMessage(msg packet.LogMessage) {
	level := msg.Level.String()
	if isatty.IsTerminal(os.Stdout.Fd()) {
		level = ansi.Color(level, levelColors[msg.Level])
	}
	if msg.ResourceName != "" {
		fmt.Printf("[%s] %s/%s: %s\n", level, msg.Domain, msg.ResourceName, msg.Message)
		return
	}
	fmt.Printf("[%s] %s: %s\n", level, msg.Domain, msg.Message)
}
