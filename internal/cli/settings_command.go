package cli

import (
	"errors"
	"flag"
	"fmt"
	"strings"

	"ytdlp-queue/internal/config"
	"ytdlp-queue/internal/ytdlp"
)

// keyValueFlags collects repeated --set key=value flags.
type keyValueFlags []string

func (k *keyValueFlags) String() string {
	return strings.Join(*k, ",")
}

func (k *keyValueFlags) Set(v string) error {
	if !strings.Contains(v, "=") {
		return fmt.Errorf("expected key=value, got %q", v)
	}
	*k = append(*k, v)
	return nil
}

func runSettings(args []string) error {
	fs := flag.NewFlagSet("settings", flag.ContinueOnError)
	configPath := fs.String("config", "", "settings file (default $XDG_CONFIG_HOME/ytdlp-queue/config.yaml)")
	var sets keyValueFlags
	fs.Var(&sets, "set", "update a setting, key=value (repeatable)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected argument %q (use --set key=value)", fs.Arg(0))
	}

	settings, path, err := loadSettings(*configPath)
	if err != nil {
		return err
	}

	if len(sets) > 0 {
		for _, kv := range sets {
			key, value, _ := strings.Cut(kv, "=")
			if err := settings.Set(key, value); err != nil {
				return err
			}
		}
		settings = config.Normalize(settings)
		if err := checkSettingValues(settings); err != nil {
			return err
		}
		if err := config.Save(path, settings); err != nil {
			return err
		}
		if !*jsonOut {
			fmt.Printf("updated settings in %s\n", path)
		}
	}

	if *jsonOut {
		return printJSON(map[string]any{
			"config_path": path,
			"settings":    settings,
		})
	}

	fmt.Printf("config: %s\n", path)
	fmt.Printf("ytdlp_path: %s\n", valueOrNone(settings.YtdlpPath))
	fmt.Printf("ffmpeg_location: %s\n", valueOrNone(settings.FFmpegLocation))
	fmt.Printf("output_dir: %s\n", settings.OutputDir)
	fmt.Printf("mode: %s\n", settings.Mode)
	fmt.Printf("audio_format: %s\n", settings.AudioFormat)
	fmt.Printf("playlist_enabled: %t\n", settings.PlaylistEnabled)
	fmt.Printf("js_runtime: %s\n", settings.JSRuntime)
	fmt.Printf("extractor_args: %s\n", valueOrNone(settings.ExtractorArgs))
	fmt.Printf("state_dir: %s\n", settings.StateDir)
	fmt.Printf("history_path: %s\n", settings.HistoryDBPath())
	fmt.Printf("log_level: %s\n", settings.LogLevel)
	fmt.Printf("log_format: %s\n", settings.LogFormat)
	return nil
}

// checkSettingValues rejects values that can never be valid. Whether the
// yt-dlp executable resolves is left to doctor and run.
func checkSettingValues(s config.Settings) error {
	err := config.Validate(s)
	if err == nil {
		return nil
	}
	var kept []error
	for _, e := range unwrapJoined(err) {
		if errors.Is(e, ytdlp.ErrExecutableNotFound) {
			continue
		}
		kept = append(kept, e)
	}
	return errors.Join(kept...)
}

func unwrapJoined(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}
