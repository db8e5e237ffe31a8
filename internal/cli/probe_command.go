package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"ytdlp-queue/internal/audiotrack"
	"ytdlp-queue/internal/model"
	"ytdlp-queue/internal/ytdlp"
)

type probeOutput struct {
	URL      string               `json:"url"`
	Title    string               `json:"title,omitempty"`
	Language string               `json:"language,omitempty"`
	Formats  []model.Format       `json:"formats"`
	Warnings []string             `json:"warnings,omitempty"`
	Track    *model.SelectedTrack `json:"track,omitempty"`
}

func runProbe(args []string) error {
	fs := flag.NewFlagSet("probe", flag.ContinueOnError)
	configPath := fs.String("config", "", "settings file (default $XDG_CONFIG_HOME/ytdlp-queue/config.yaml)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("probe requires exactly one URL")
	}
	url := strings.TrimSpace(fs.Arg(0))

	settings, _, err := loadSettings(*configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	res, err := ytdlp.Probe(ctx, ytdlp.ProbeOptions{
		Tools:           settings.Tools(),
		URL:             url,
		PlaylistEnabled: settings.PlaylistEnabled,
	})
	if err != nil {
		var probeErr *ytdlp.ProbeError
		if errors.As(err, &probeErr) && probeErr.Output != "" {
			fmt.Fprintln(os.Stderr, probeErr.Output)
		}
		return err
	}

	out := probeOutput{
		URL:      url,
		Title:    res.Title,
		Language: res.Language,
		Formats:  res.Formats,
		Warnings: res.Warnings,
	}
	if track, ok := audiotrack.Select(res.Formats, res.Language); ok {
		out.Track = &track
	}
	if *jsonOut {
		return printJSON(out)
	}

	if out.Title != "" {
		fmt.Printf("title: %s\n", out.Title)
	}
	fmt.Printf("language: %s\n", valueOrNone(out.Language))
	for _, w := range out.Warnings {
		fmt.Println(warnStyle.Render("warning: ") + w)
	}
	fmt.Println()
	fmt.Printf("%-12s %-8s %-12s %-12s %-8s %-7s %s\n", "ID", "KIND", "ACODEC", "VCODEC", "LANG", "ABR", "NOTE")
	for _, f := range out.Formats {
		fmt.Printf("%-12s %-8s %-12s %-12s %-8s %-7s %s\n",
			truncateRunes(f.ID, 12), formatKind(f), truncateRunes(deref(f.ACodec), 12), truncateRunes(deref(f.VCodec), 12),
			valueOrNone(f.LanguageOrEmpty()), formatBitrate(f.AudioBitrate()), deref(f.Note))
	}
	fmt.Println()
	if out.Track == nil {
		fmt.Println(errorStyle.Render("no suitable audio track"))
		return nil
	}
	fmt.Println(okStyle.Render("audio track: ") + out.Track.Describe())
	return nil
}

func formatKind(f model.Format) string {
	switch {
	case f.IsAudioOnly():
		return "audio"
	case f.IsCombined():
		return "av"
	case f.HasVideo():
		return "video"
	default:
		return "other"
	}
}

func formatBitrate(v float64) string {
	if v <= 0 {
		return "-"
	}
	return strconv.FormatFloat(v, 'f', 0, 64) + "k"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func valueOrNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}
