// Package logger builds the zap.Logger genet's Host and its demo CLI
// share, plus the banner/section console chrome used at startup.
package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ANSI color codes, used only by the console chrome below; zap's own
// ColorLevelEncoder handles per-record coloring.
const (
	ColorReset  = "\033[0m"
	ColorCyan   = "\033[36m"
	ColorGreen  = "\033[32m"
)

// New builds a zap.Logger writing colored, human-readable lines to
// stderr at or above level. Pass zapcore.DebugLevel for verbose runs.
func New(level zapcore.Level) *zap.Logger {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(cfg),
		zapcore.Lock(os.Stderr),
		zap.NewAtomicLevelAt(level),
	)
	return zap.New(core)
}

// Section prints a section header to stdout, independent of the logger
// level — used for human-facing CLI structure, not log records.
func Section(title string) {
	border := "═══════════════════════════════════════════════════════════"
	fmt.Printf("\n%s╔%s╗%s\n", ColorCyan, border, ColorReset)
	fmt.Printf("%s║%s %-57s %s║%s\n", ColorCyan, ColorReset, title, ColorCyan, ColorReset)
	fmt.Printf("%s╚%s╝%s\n\n", ColorCyan, border, ColorReset)
}

// Banner prints the application banner.
func Banner(title, version string) {
	banner := `
╔═══════════════════════════════════════════════════════════╗
║                                                           ║
║    ██████╗ ███████╗███╗   ██╗███████╗████████╗           ║
║   ██╔════╝ ██╔════╝████╗  ██║██╔════╝╚══██╔══╝           ║
║   ██║  ███╗█████╗  ██╔██╗ ██║█████╗     ██║              ║
║   ██║   ██║██╔══╝  ██║╚██╗██║██╔══╝     ██║              ║
║   ╚██████╔╝███████╗██║ ╚████║███████╗   ██║              ║
║    ╚═════╝ ╚══════╝╚═╝  ╚═══╝╚══════╝   ╚═╝              ║
║                                                           ║
║              %s%-37s%s║
║                    %sVersion %-7s%s                      ║
║                                                           ║
╚═══════════════════════════════════════════════════════════╝
`
	fmt.Printf(banner, ColorCyan, title, ColorReset, ColorGreen, version, ColorReset)
}
