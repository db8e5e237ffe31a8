// Package config loads and validates the user settings for the queue.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"ytdlp-queue/internal/model"
	"ytdlp-queue/internal/store"
	"ytdlp-queue/internal/ytdlp"
)

const (
	appDirName     = "ytdlp-queue"
	configFileName = "config.yaml"
	historyDBName  = "history.db"

	DefaultAudioFormat   = "mp3"
	DefaultJSRuntime     = "node"
	DefaultExtractorArgs = "youtube:player_client=web,android"
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
)

var audioFormats = map[string]bool{
	"best":   true,
	"aac":    true,
	"alac":   true,
	"flac":   true,
	"m4a":    true,
	"mp3":    true,
	"opus":   true,
	"vorbis": true,
	"wav":    true,
}

// Settings is the content of config.yaml.
type Settings struct {
	YtdlpPath       string `yaml:"ytdlp_path,omitempty" json:"ytdlp_path,omitempty"`
	FFmpegLocation  string `yaml:"ffmpeg_location,omitempty" json:"ffmpeg_location,omitempty"`
	OutputDir       string `yaml:"output_dir" json:"output_dir"`
	PlaylistEnabled bool   `yaml:"playlist_enabled" json:"playlist_enabled"`
	AudioFormat     string `yaml:"audio_format" json:"audio_format"`
	Mode            string `yaml:"mode" json:"mode"`
	JSRuntime       string `yaml:"js_runtime" json:"js_runtime"`
	ExtractorArgs   string `yaml:"extractor_args" json:"extractor_args"`
	HistoryPath     string `yaml:"history_path,omitempty" json:"history_path,omitempty"`
	StateDir        string `yaml:"state_dir,omitempty" json:"state_dir,omitempty"`
	LogLevel        string `yaml:"log_level" json:"log_level"`
	LogFormat       string `yaml:"log_format" json:"log_format"`
}

func Default() Settings {
	return Settings{
		OutputDir:     defaultOutputDir(),
		AudioFormat:   DefaultAudioFormat,
		Mode:          string(model.ModeVideo),
		JSRuntime:     DefaultJSRuntime,
		ExtractorArgs: DefaultExtractorArgs,
		StateDir:      defaultStateDir(),
		LogLevel:      DefaultLogLevel,
		LogFormat:     DefaultLogFormat,
	}
}

// Normalize trims every field, expands a leading "~" and fills empty values
// with defaults. Unknown enum values are kept so Validate can report them.
func Normalize(raw Settings) Settings {
	norm := raw
	norm.YtdlpPath = expandHome(strings.TrimSpace(norm.YtdlpPath))
	norm.FFmpegLocation = expandHome(strings.TrimSpace(norm.FFmpegLocation))
	norm.OutputDir = expandHome(strings.TrimSpace(norm.OutputDir))
	norm.HistoryPath = expandHome(strings.TrimSpace(norm.HistoryPath))
	norm.StateDir = expandHome(strings.TrimSpace(norm.StateDir))
	norm.ExtractorArgs = strings.TrimSpace(norm.ExtractorArgs)

	norm.AudioFormat = lowerOr(norm.AudioFormat, DefaultAudioFormat)
	norm.JSRuntime = lowerOr(norm.JSRuntime, DefaultJSRuntime)
	norm.LogLevel = lowerOr(norm.LogLevel, DefaultLogLevel)
	norm.LogFormat = lowerOr(norm.LogFormat, DefaultLogFormat)
	if mode, ok := model.ParseMode(norm.Mode); ok {
		norm.Mode = string(mode)
	} else {
		norm.Mode = strings.ToLower(strings.TrimSpace(norm.Mode))
	}

	if norm.OutputDir == "" {
		norm.OutputDir = defaultOutputDir()
	}
	if norm.StateDir == "" {
		norm.StateDir = defaultStateDir()
	}
	return norm
}

// Validate checks what the queue needs before starting the first job.
func Validate(s Settings) error {
	var errs []error
	if strings.TrimSpace(s.OutputDir) == "" {
		errs = append(errs, errors.New("output_dir is required"))
	}
	if _, ok := model.ParseMode(s.Mode); !ok {
		errs = append(errs, fmt.Errorf("mode %q is not one of video, audio", s.Mode))
	}
	if !audioFormats[strings.ToLower(strings.TrimSpace(s.AudioFormat))] {
		errs = append(errs, fmt.Errorf("audio_format %q is not supported (expected one of %s)", s.AudioFormat, strings.Join(AudioFormats(), ", ")))
	}
	if _, err := ytdlp.ProbeArgs(ytdlp.ProbeOptions{Tools: s.Tools(), URL: "-"}); err != nil {
		errs = append(errs, err)
	}
	if _, err := ytdlp.ResolveExecutable(s.YtdlpPath); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func AudioFormats() []string {
	out := make([]string, 0, len(audioFormats))
	for f := range audioFormats {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// ModeValue returns the parsed mode, falling back to video.
func (s Settings) ModeValue() model.Mode {
	mode, ok := model.ParseMode(s.Mode)
	if !ok {
		return model.ModeVideo
	}
	return mode
}

func (s Settings) Tools() ytdlp.Tools {
	return ytdlp.Tools{
		YtdlpPath:      s.YtdlpPath,
		FFmpegLocation: s.FFmpegLocation,
		SystemPath:     ytdlp.SystemPath(),
		JSRuntime:      s.JSRuntime,
		ExtractorArgs:  s.ExtractorArgs,
	}
}

// HistoryDBPath is history_path, or history.db inside the state directory.
func (s Settings) HistoryDBPath() string {
	if p := strings.TrimSpace(s.HistoryPath); p != "" {
		return p
	}
	return filepath.Join(s.StateDir, historyDBName)
}

// Set assigns one field by its YAML key. Booleans accept strconv.ParseBool
// spellings.
func (s *Settings) Set(key, value string) error {
	v := strings.TrimSpace(value)
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "ytdlp_path":
		s.YtdlpPath = v
	case "ffmpeg_location":
		s.FFmpegLocation = v
	case "output_dir":
		s.OutputDir = v
	case "playlist_enabled":
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("playlist_enabled must be true or false: %w", err)
		}
		s.PlaylistEnabled = b
	case "audio_format":
		s.AudioFormat = v
	case "mode":
		s.Mode = v
	case "js_runtime":
		s.JSRuntime = v
	case "extractor_args":
		s.ExtractorArgs = v
	case "history_path":
		s.HistoryPath = v
	case "state_dir":
		s.StateDir = v
	case "log_level":
		s.LogLevel = v
	case "log_format":
		s.LogFormat = v
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return nil
}

// Load reads settings from path. A missing file yields the defaults.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Settings{}, fmt.Errorf("read config %s: %w", path, err)
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return Normalize(s), nil
}

// LoadDefault loads settings from DefaultPath.
func LoadDefault() (Settings, string, error) {
	path, err := DefaultPath()
	if err != nil {
		return Settings{}, "", err
	}
	s, err := Load(path)
	return s, path, err
}

func Save(path string, s Settings) error {
	data, err := yaml.Marshal(Normalize(s))
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return store.WriteBytes(path, data)
}

// DefaultPath is $XDG_CONFIG_HOME/ytdlp-queue/config.yaml, falling back to
// ~/.config.
func DefaultPath() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, appDirName, configFileName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".config", appDirName, configFileName), nil
}

func defaultOutputDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, "Downloads")
}

func defaultStateDir() string {
	if xdg := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); xdg != "" {
		return filepath.Join(xdg, appDirName)
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(os.TempDir(), appDirName)
	}
	return filepath.Join(home, ".local", "state", appDirName)
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

func lowerOr(raw, fallback string) string {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return fallback
	}
	return v
}
