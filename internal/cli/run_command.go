package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"ytdlp-queue/internal/config"
	"ytdlp-queue/internal/history"
	"ytdlp-queue/internal/logger"
	"ytdlp-queue/internal/metrics"
	"ytdlp-queue/internal/model"
	"ytdlp-queue/internal/queue"
	"ytdlp-queue/internal/store"
	"ytdlp-queue/internal/ytdlp"
)

const tuiLogFileName = "ytdlp-queue.log"

func runQueue(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "settings file (default $XDG_CONFIG_HOME/ytdlp-queue/config.yaml)")
	file := fs.String("file", "", "read URLs from a file, one per line")
	mode := fs.String("mode", "", "video|audio (empty keeps the configured mode)")
	outputDir := fs.String("output-dir", "", "download directory (empty keeps the configured one)")
	audioFormat := fs.String("audio-format", "", "audio format for audio mode (empty keeps the configured one)")
	playlist := fs.Bool("playlist", false, "download whole playlists instead of single videos")
	tui := fs.Bool("tui", false, "show the interactive live view")
	metricsAddr := fs.String("metrics-addr", "", "serve Prometheus metrics on this address while running (e.g. 127.0.0.1:9090)")
	noHistory := fs.Bool("no-history", false, "do not record finished jobs")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	settings, _, err := loadSettings(*configPath)
	if err != nil {
		return err
	}
	if m := strings.TrimSpace(*mode); m != "" {
		if _, ok := model.ParseMode(m); !ok {
			return errors.New("--mode must be video or audio")
		}
		settings.Mode = m
	}
	if d := strings.TrimSpace(*outputDir); d != "" {
		settings.OutputDir = d
	}
	if f := strings.TrimSpace(*audioFormat); f != "" {
		settings.AudioFormat = f
	}
	fs.Visit(func(fl *flag.Flag) {
		if fl.Name == "playlist" {
			settings.PlaylistEnabled = *playlist
		}
	})
	settings = config.Normalize(settings)

	urls, err := collectURLs(fs.Args(), *file, os.Stdin)
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		return errors.New("no URLs given (pass URLs, --file <path>, or - to read stdin)")
	}
	if *tui && !stdoutIsTTY() {
		return errors.New("--tui requires an interactive terminal (TTY)")
	}

	var logOut io.Writer = os.Stderr
	if *tui {
		f, err := openTUILog(settings.StateDir)
		if err != nil {
			return err
		}
		defer func() {
			_ = f.Close()
		}()
		logOut = f
	}
	log := logger.Init(settings.LogLevel, settings.LogFormat, logOut)

	if err := config.Validate(settings); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	lock, err := store.AcquireQueueLock(settings.StateDir, len(urls))
	if err != nil {
		return err
	}
	defer func() {
		_ = lock.Release()
	}()

	var recorder queue.Recorder
	if !*noHistory {
		hs, err := history.Open(settings.HistoryDBPath())
		if err != nil {
			log.Warn("history disabled", "path", settings.HistoryDBPath(), "error", err)
		} else {
			defer func() {
				_ = hs.Close()
			}()
			recorder = hs
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if addr := strings.TrimSpace(*metricsAddr); addr != "" {
		if err := m.Serve(ctx, addr, log); err != nil {
			return err
		}
	}

	notifier := &teaNotifier{}
	reporter := newLineReporter(!*jsonOut && !*tui, stdoutIsTTY())
	sched := queue.New(queue.Options{
		Settings:  settings,
		Toolchain: ytdlp.Client{},
		History:   recorder,
		Metrics:   m,
		Logger:    log,
		OnUpdate: func(job model.Job) {
			notifier.send(jobUpdateMsg{job: job})
			reporter.update(job)
		},
	})
	sched.Add(urls...)

	var runErr error
	if *tui {
		runErr = runWatch(ctx, stop, sched, notifier)
	} else {
		runErr = sched.Run(ctx)
	}

	jobs := sched.Jobs()
	stats := sched.Stats()
	if *jsonOut {
		if err := printJSON(map[string]any{
			"jobs":  jobs,
			"stats": stats,
		}); err != nil {
			return err
		}
	} else {
		printRunSummary(jobs, stats)
	}

	if errors.Is(runErr, context.Canceled) {
		return errors.New("interrupted")
	}
	if runErr != nil {
		return runErr
	}
	if stats.Failed > 0 {
		return fmt.Errorf("%d of %d jobs failed", stats.Failed, stats.Total())
	}
	return nil
}

func openTUILog(stateDir string) (*os.File, error) {
	if err := store.Mkdir(stateDir); err != nil {
		return nil, err
	}
	path := filepath.Join(stateDir, tuiLogFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return f, nil
}

func printRunSummary(jobs []model.Job, stats queue.Stats) {
	if len(jobs) == 0 {
		return
	}
	fmt.Println()
	for _, job := range jobs {
		line := fmt.Sprintf("%s %s", statusLabel(job.Status), job.URL)
		if job.Reason != "" && job.Status != model.StatusCanceled {
			line += mutedStyle.Render(" (" + job.Reason + ")")
		}
		if d := job.Duration(); d > 0 {
			line += mutedStyle.Render(" " + d.Round(time.Second).String())
		}
		fmt.Println(line)
	}
	fmt.Printf("done %d | failed %d | canceled %d | pending %d\n", stats.Done, stats.Failed, stats.Canceled, stats.Pending)
}
