// whep-play - CLI entry point.
//
// This tool plays a WHEP (WebRTC-HTTP Egress Protocol) endpoint headlessly:
// it negotiates a receive-only peer connection over HTTP, drains the media,
// reconnects on failure and reports stalls. Session events can be streamed
// over WebSocket and scraped as Prometheus metrics.
//
// It can be launched interactively (no URL) or non-interactively via CLI
// flags (--url, --token, --ice, ...).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/pflag"

	"github.com/1ureka/whep-play/internal/app"
	"github.com/1ureka/whep-play/internal/config"
	"github.com/1ureka/whep-play/internal/util"
)

var version = "dev"

func main() {
	// Root context, cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// CLI flags.
	cfg := config.Default()
	fs := pflag.NewFlagSet("whep-play", pflag.ExitOnError)
	cfg.BindFlags(fs)
	_ = fs.Parse(os.Args[1:])

	if cfg.URL == "" && fs.NArg() > 0 {
		cfg.URL = fs.Arg(0)
	}

	if cfg.Debug {
		util.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("whep-play v%s", version))
	pterm.Println()

	if cfg.URL == "" {
		// No endpoint given, fall back to an interactive prompt.
		cfg.URL = askURL()
	}

	if err := cfg.Validate(); err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}

	if err := app.RunPlayer(ctx, cfg); err != nil {
		util.LogError("failed to play %s: %v", cfg.URL, err)
		os.Exit(1)
	}

	util.LogInfo("playback stopped")
}

// ---------------------------------------------------------------------------
// Helper Functions
// ---------------------------------------------------------------------------

// askURL prompts the user for a valid WHEP endpoint until one is entered.
func askURL() string {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText("WHEP endpoint (e.g. https://example.com/whep/live)").
			Show()

		u, err := config.NormalizeEndpoint(raw)
		if err == nil {
			pterm.Println()
			return u.String()
		}

		pterm.Println()
		util.LogWarning("invalid input: please enter a valid http(s) URL")
	}
}
