package main

import (
	"context"
	"discord-baitchannel-bot/internal/config"
	"discord-baitchannel-bot/internal/database"
	"discord-baitchannel-bot/internal/models"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

type report struct {
	Summary *models.BaitLogSummary `json:"summary"`
	Entries []*models.BaitLogEntry `json:"entries"`
}

func main() {
	configPath := flag.String("config", "config.json", "path to config file (json or yaml)")
	guildID := flag.String("guild", "", "guild ID to report on (required)")
	since := flag.Duration("since", 7*24*time.Hour, "how far back to look")
	limit := flag.Int("limit", 25, "maximum entries to list")
	asJSON := flag.Bool("json", false, "print the report as JSON")
	flag.Parse()

	if *guildID == "" {
		fmt.Fprintln(os.Stderr, "-guild is required")
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*configPath, *guildID, *since, *limit, *asJSON, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(configPath, guildID string, since time.Duration, limit int, asJSON bool, w io.Writer) error {
	cfg, err := config.Read(configPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.Open(ctx, cfg.Database, zap.NewNop())
	if err != nil {
		return err
	}
	defer db.Close()

	from := time.Now().Add(-since).UnixMilli()
	entries, err := db.GetBaitLogs(ctx, guildID, from, 0, limit)
	if err != nil {
		return err
	}
	summary, err := db.SummarizeBaitLogs(ctx, guildID, from, 0)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report{Summary: summary, Entries: entries})
	}
	return printReport(w, summary, entries)
}

func printReport(w io.Writer, s *models.BaitLogSummary, entries []*models.BaitLogEntry) error {
	fmt.Fprintf(w, "Guild %s: %d entries, average score %.1f\n", s.GuildID, s.Total, s.AverageScore)

	var actions []string
	for _, a := range models.GetAllBaitActions() {
		if n := s.ByAction[a]; n > 0 {
			actions = append(actions, fmt.Sprintf("%s=%d", a, n))
		}
	}
	fmt.Fprintf(w, "Actions: %s\n", orNone(actions))

	flags := make([]string, 0, len(s.FlagCounts))
	for f, n := range s.FlagCounts {
		flags = append(flags, fmt.Sprintf("%s=%d", f, n))
	}
	sort.Strings(flags)
	fmt.Fprintf(w, "Flags: %s\n\n", orNone(flags))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tUSER\tACTION\tSCORE\tREASON")
	for _, e := range entries {
		reason := e.DetectionReason
		if e.FailureReason != "" {
			reason += " (" + e.FailureReason + ")"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			time.UnixMilli(e.CreatedAt).UTC().Format(time.RFC3339),
			e.UserID, e.Action, e.SuspicionScore, reason)
	}
	return tw.Flush()
}

func orNone(parts []string) string {
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}
