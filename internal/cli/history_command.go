package cli

import (
	"flag"
	"fmt"
	"time"

	"ytdlp-queue/internal/history"
)

func runHistory(args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	configPath := fs.String("config", "", "settings file (default $XDG_CONFIG_HOME/ytdlp-queue/config.yaml)")
	limit := fs.Int("limit", 20, "number of entries to show (max 200)")
	clearAll := fs.Bool("clear", false, "delete all history entries")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	settings, _, err := loadSettings(*configPath)
	if err != nil {
		return err
	}
	hs, err := history.Open(settings.HistoryDBPath())
	if err != nil {
		return err
	}
	defer func() {
		_ = hs.Close()
	}()

	if *clearAll {
		if err := hs.Clear(); err != nil {
			return err
		}
		if *jsonOut {
			return printJSON(map[string]any{"cleared": true})
		}
		fmt.Println("history cleared")
		return nil
	}

	entries, err := hs.List(*limit)
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(entries)
	}
	if len(entries) == 0 {
		fmt.Println("history is empty")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("%s %s %s %s\n",
			mutedStyle.Render(e.EndedAt.Local().Format(time.DateTime)),
			statusLabel(e.Status),
			e.URL,
			mutedStyle.Render("["+string(e.Mode)+"] "+e.OutputDir),
		)
		if e.Summary != "" {
			fmt.Printf("    %s\n", mutedStyle.Render(truncateRunes(e.Summary, 160)))
		}
	}
	return nil
}
