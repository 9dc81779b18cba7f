package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/zulandar/wallboard/internal/config"
	"github.com/zulandar/wallboard/internal/db"
	"github.com/zulandar/wallboard/internal/journal"
	"github.com/zulandar/wallboard/internal/server"
	"github.com/zulandar/wallboard/internal/telegraph"
	discordadapter "github.com/zulandar/wallboard/internal/telegraph/discord"
	slackadapter "github.com/zulandar/wallboard/internal/telegraph/slack"
	"github.com/zulandar/wallboard/internal/wallboard"
)

const banner = `
 __      __        .__  .__ ___.                          .___
/  \    /  \_____  |  | |  |\_ |__   ____ _____ _______  __| _/
\   \/\/   /\__  \ |  | |  | | __ \ /  _ \\__  \\_  __ \/ __ |
 \        /  / __ \|  |_|  |_| \_\ (  <_> )/ __ \|  | \/ /_/ |
  \__/\  /  (____  /____/____/___  /\____/(____  /__|  \____ |
       \/        \/              \/            \/           \/
`

type serveOpts struct {
	configPath string
	port       int
	seed       bool
	noSeed     bool
}

func newServeCmd() *cobra.Command {
	var opts serveOpts

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the wallboard API and live event streams",
		Long: "Starts the HTTP API, SSE and WebSocket streams, the heartbeat, and, when " +
			"configured, the event journal and the chat relay.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.OutOrStdout())
			defer cancel()
			return runServe(ctx, cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", config.DefaultPath, "path to wallboard config file (defaults apply if missing)")
	cmd.Flags().IntVarP(&opts.port, "port", "p", 0, "override server.port")
	cmd.Flags().BoolVar(&opts.seed, "seed", false, "load sample agents and messages")
	cmd.Flags().BoolVar(&opts.noSeed, "no-seed", false, "skip sample data even if the config enables it")
	cmd.MarkFlagsMutuallyExclusive("seed", "no-seed")
	return cmd
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(out io.Writer) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			fmt.Fprintf(out, "\nReceived %s, shutting down...\n", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func runServe(ctx context.Context, cmd *cobra.Command, opts serveOpts) error {
	out := cmd.OutOrStdout()

	cfg, err := config.LoadOptional(opts.configPath)
	if err != nil {
		return err
	}
	if opts.port > 0 {
		cfg.Server.Port = opts.port
	}
	switch {
	case opts.seed:
		cfg.Seed.SampleData = true
	case opts.noSeed:
		cfg.Seed.SampleData = false
	}

	logger := setupLogger(cfg.Logging, cmd.ErrOrStderr())
	printBanner(out, opts.configPath, cfg)

	svc, err := newService(cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Hub.Close()

	var wg sync.WaitGroup
	defer wg.Wait()

	// Background workers stop with ctx; cancel before waiting on them.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var j *journal.Journal
	if cfg.Journal.Enabled {
		gdb, err := db.Open(cfg.Journal)
		if err != nil {
			return err
		}
		if err := db.AutoMigrate(gdb); err != nil {
			db.Close(gdb)
			return err
		}
		j = journal.New(gdb, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer db.Close(gdb)
			j.Run(ctx, svc.Hub)
		}()
	}

	if cfg.Telegraph.Enabled {
		relay, err := newRelay(cfg.Telegraph, svc, out, logger)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := relay.Run(ctx); err != nil {
				logger.Error("telegraph relay stopped", "error", err)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := svc.Hub.RunHeartbeat(ctx, cfg.Realtime.Heartbeat()); err != nil {
			logger.Error("heartbeat stopped", "error", err)
		}
	}()

	logger.Info("starting wallboard",
		"config", opts.configPath,
		"port", cfg.Server.Port,
		"environment", cfg.Server.Environment)

	err = server.Start(ctx, server.StartOpts{
		Service: svc,
		Journal: j,
		Config:  cfg.Server,
		Version: Version,
		Logger:  logger,
		Out:     out,
	})
	cancel()
	return err
}

// newService builds the in-memory wallboard and seeds it when configured.
func newService(cfg *config.Config, logger *slog.Logger) (*wallboard.Service, error) {
	svc := wallboard.NewInMemory(cfg.Realtime.BufferSize, logger, nil)
	if cfg.Seed.SampleData {
		if err := svc.Seed(time.Now()); err != nil {
			svc.Hub.Close()
			return nil, err
		}
	}
	return svc, nil
}

// newRelay builds the chat relay for the configured platform.
func newRelay(cfg config.TelegraphConfig, svc *wallboard.Service, out io.Writer, logger *slog.Logger) (*telegraph.Relay, error) {
	var (
		adapter telegraph.Adapter
		err     error
	)
	switch cfg.Platform {
	case "slack":
		adapter, err = slackadapter.New(slackadapter.AdapterOpts{
			BotToken:  cfg.Slack.BotToken,
			ChannelID: cfg.ChannelID,
		})
	case "discord":
		adapter, err = discordadapter.New(discordadapter.AdapterOpts{
			BotToken:  cfg.Discord.BotToken,
			ChannelID: cfg.ChannelID,
			Logger:    logger,
		})
	default:
		return nil, fmt.Errorf("telegraph: unsupported platform %q", cfg.Platform)
	}
	if err != nil {
		return nil, err
	}

	return telegraph.NewRelay(telegraph.RelayOpts{
		Hub:     svc.Hub,
		Adapter: adapter,
		Config:  cfg,
		Stats:   svc.Dashboard,
		Out:     out,
		Logger:  logger,
	})
}

// printBanner writes the startup summary. Color is only used on terminals.
func printBanner(out io.Writer, configPath string, cfg *config.Config) {
	if f, ok := out.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		color.NoColor = true
	}

	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	cyan.Fprint(out, banner)
	gray.Fprintf(out, "    version: %s\n\n", Version)

	line := func(label, value string) {
		green.Fprint(out, "    ▶ ")
		fmt.Fprintf(out, "%-10s %s\n", label+":", value)
	}
	line("Config", configPath)
	line("HTTP", fmt.Sprintf("http://localhost:%d", cfg.Server.Port))
	line("Frontend", cfg.Server.FrontendURL)
	line("Env", cfg.Server.Environment)
	if cfg.Journal.Enabled {
		line("Journal", cfg.Journal.Driver)
	}
	if cfg.Telegraph.Enabled {
		green.Fprint(out, "    ▶ ")
		fmt.Fprintf(out, "%-10s ", "Telegraph:")
		yellow.Fprintf(out, "%s #%s\n", cfg.Telegraph.Platform, cfg.Telegraph.ChannelID)
	}
	fmt.Fprintln(out)
}
