package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/zulandar/wallboard/internal/config"
	"github.com/zulandar/wallboard/internal/db"
	"github.com/zulandar/wallboard/internal/fanout"
	"github.com/zulandar/wallboard/internal/journal"
	"github.com/zulandar/wallboard/internal/models"
)

func newEventsCmd() *cobra.Command {
	var (
		configPath string
		limit      int
		eventType  string
		agent      string
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show journaled wallboard events",
		Long:  "Reads the event journal written by a running or past `wb serve` and prints the newest entries.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(cmd, configPath, limit, eventType, agent)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to wallboard config file")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "max events to show")
	cmd.Flags().StringVarP(&eventType, "type", "t", "", "only show this event type (e.g. agentLogin)")
	cmd.Flags().StringVarP(&agent, "agent", "a", "", "only show events about this agent code")
	return cmd
}

func runEvents(cmd *cobra.Command, configPath string, limit int, eventType, agent string) error {
	cfg, err := config.LoadOptional(configPath)
	if err != nil {
		return err
	}
	if !cfg.Journal.Enabled {
		return fmt.Errorf("journal is disabled in %s", configPath)
	}
	if cfg.Journal.Driver == "sqlite" && cfg.Journal.Path == ":memory:" {
		return fmt.Errorf("journal.path is in-memory; set a file path to read events after the server exits")
	}

	gdb, err := db.Open(cfg.Journal)
	if err != nil {
		return err
	}
	defer db.Close(gdb)
	if err := db.AutoMigrate(gdb); err != nil {
		return err
	}

	j := journal.New(gdb, nil)
	var recs []models.EventRecord
	if agent != "" {
		recs, err = j.ForAgent(agent, limit)
	} else {
		recs, err = j.Recent(limit, eventType)
	}
	if err != nil {
		return err
	}

	printEvents(cmd.OutOrStdout(), recs)
	return nil
}

// eventColor picks a color per event type for the table.
func eventColor(t string) *color.Color {
	switch fanout.EventType(t) {
	case fanout.EventAgentLogin:
		return color.New(color.FgGreen)
	case fanout.EventAgentLogout:
		return color.New(color.FgHiBlack)
	case fanout.EventAgentStatusChanged:
		return color.New(color.FgYellow)
	case fanout.EventMessageBroadcast, fanout.EventMessagePrivate:
		return color.New(color.FgCyan)
	}
	return color.New(color.Reset)
}

func printEvents(out io.Writer, recs []models.EventRecord) {
	if len(recs) == 0 {
		fmt.Fprintln(out, "No events recorded.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tTYPE\tAGENT\tMESSAGE")
	for _, r := range recs {
		agent, msg := r.AgentCode, ""
		if agent == "" {
			agent = "-"
		}
		if r.MessageID != 0 {
			msg = fmt.Sprintf("#%d", r.MessageID)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			r.ID,
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			eventColor(r.Type).Sprint(r.Type),
			agent,
			msg)
	}
	w.Flush()
	fmt.Fprintf(out, "\n%d event(s)\n", len(recs))
}
