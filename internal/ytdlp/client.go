package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"ytdlp-queue/internal/model"
	"ytdlp-queue/internal/runner"
)

const DefaultExecutable = "yt-dlp"

var ErrExecutableNotFound = errors.New("yt-dlp executable not found")

type ProbeFailure string

const (
	ProbeNonZeroExit ProbeFailure = "non_zero_exit"
	ProbeEmptyOutput ProbeFailure = "empty_output"
	ProbeParseError  ProbeFailure = "parse_error"
)

// ProbeError reports why a metadata probe produced no usable document. Output
// holds what the tool printed, for the job log.
type ProbeError struct {
	Kind     ProbeFailure
	ExitCode int
	Output   string
	Err      error
}

func (e *ProbeError) Error() string {
	switch e.Kind {
	case ProbeNonZeroExit:
		return fmt.Sprintf("yt-dlp metadata probe exited with code %d", e.ExitCode)
	case ProbeEmptyOutput:
		return "yt-dlp metadata probe returned empty output"
	default:
		return fmt.Sprintf("parse yt-dlp metadata: %v", e.Err)
	}
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// Tools locates the external programs and the shared invocation flags.
type Tools struct {
	YtdlpPath      string
	FFmpegLocation string
	SystemPath     string
	JSRuntime      string
	ExtractorArgs  string
}

type ProbeOptions struct {
	Tools
	URL             string
	PlaylistEnabled bool
}

type ProbeResult struct {
	Title    string
	Language string
	Formats  []model.Format
	Warnings []string
}

type DownloadOptions struct {
	Tools
	URL             string
	OutputDir       string
	Mode            model.Mode
	AudioFormat     string
	PlaylistEnabled bool
	Track           model.SelectedTrack
}

type DependencyReport struct {
	YTDLPFound  bool   `json:"yt_dlp_found"`
	YTDLPPath   string `json:"yt_dlp_path,omitempty"`
	FFmpegFound bool   `json:"ffmpeg_found"`
	FFmpegPath  string `json:"ffmpeg_path,omitempty"`
	SearchPath  string `json:"search_path,omitempty"`
}

// Client runs yt-dlp for the queue.
type Client struct{}

func (Client) Probe(ctx context.Context, opts ProbeOptions) (ProbeResult, error) {
	return Probe(ctx, opts)
}

func (Client) Download(opts DownloadOptions) (runner.Handle, error) {
	p, err := StartDownload(opts)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func CheckJSRuntime(raw string) (string, error) {
	runtime, ok := normalizeJSRuntime(raw)
	if !ok {
		return "", fmt.Errorf("invalid js runtime %q (expected auto, deno, node, quickjs, or bun)", strings.TrimSpace(raw))
	}
	if runtime == "auto" {
		return runtime, nil
	}
	candidates := jsRuntimeBinaryCandidates(runtime)
	for _, bin := range candidates {
		if _, err := exec.LookPath(bin); err == nil {
			return runtime, nil
		}
	}
	return "", fmt.Errorf("missing dependency for js runtime %q: install one of [%s] or set js runtime to auto", runtime, strings.Join(candidates, ", "))
}

func DependencyStatus(tools Tools) DependencyReport {
	report := DependencyReport{SearchPath: SearchPath(tools.YtdlpPath, tools.FFmpegLocation, tools.SystemPath)}
	if path, err := ResolveExecutable(tools.YtdlpPath); err == nil {
		report.YTDLPFound = true
		report.YTDLPPath = path
	}
	if path, ok := findFFmpeg(tools.FFmpegLocation); ok {
		report.FFmpegFound = true
		report.FFmpegPath = path
	}
	return report
}

func CheckDependencies(tools Tools) error {
	report := DependencyStatus(tools)
	if !report.YTDLPFound {
		return fmt.Errorf("missing dependency: %w (set ytdlp_path or put yt-dlp on PATH)", ErrExecutableNotFound)
	}
	if !report.FFmpegFound {
		return fmt.Errorf("missing dependency: ffmpeg is required for merging and audio extraction and was not found")
	}
	return nil
}

// ResolveExecutable returns the yt-dlp program to run. An empty path means
// "yt-dlp" from PATH; a path with a directory must exist as given.
func ResolveExecutable(configured string) (string, error) {
	p := strings.TrimSpace(configured)
	if p == "" {
		p = DefaultExecutable
	}
	if !strings.ContainsAny(p, `/\`) {
		found, err := exec.LookPath(p)
		if err != nil {
			return "", fmt.Errorf("%w: %s", ErrExecutableNotFound, p)
		}
		return found, nil
	}
	info, err := os.Stat(p)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrExecutableNotFound, p)
	}
	return p, nil
}

func findFFmpeg(location string) (string, bool) {
	loc := strings.TrimSpace(location)
	if loc == "" {
		path, err := exec.LookPath("ffmpeg")
		return path, err == nil
	}
	info, err := os.Stat(loc)
	if err != nil {
		return "", false
	}
	if !info.IsDir() {
		return loc, true
	}
	for _, name := range []string{"ffmpeg", "ffmpeg.exe"} {
		candidate := filepath.Join(loc, name)
		if st, err := os.Stat(candidate); err == nil && !st.IsDir() {
			return candidate, true
		}
	}
	return "", false
}

// workingDir is the directory holding the configured executable, or "" to
// inherit the current one.
func workingDir(ytdlpPath string) string {
	dir := toolDir(ytdlpPath)
	if dir == "." {
		return ""
	}
	return dir
}

func (t Tools) env() []string {
	systemPath := t.SystemPath
	if strings.TrimSpace(systemPath) == "" {
		systemPath = SystemPath()
	}
	sp := SearchPath(t.YtdlpPath, t.FFmpegLocation, systemPath)
	if sp == "" {
		return nil
	}
	return []string{"PATH=" + sp}
}

func ProbeArgs(opts ProbeOptions) ([]string, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, fmt.Errorf("source URL is required")
	}
	args, err := appendCommonArgs(nil, opts.Tools)
	if err != nil {
		return nil, err
	}
	args = append(args, "-J", "--skip-download")
	if !opts.PlaylistEnabled {
		args = append(args, "--no-playlist")
	}
	return append(args, opts.URL), nil
}

func Probe(ctx context.Context, opts ProbeOptions) (ProbeResult, error) {
	args, err := ProbeArgs(opts)
	if err != nil {
		return ProbeResult{}, err
	}
	exe, err := ResolveExecutable(opts.YtdlpPath)
	if err != nil {
		return ProbeResult{}, err
	}

	cmd := exec.CommandContext(ctx, exe, args...)
	cmd.Dir = workingDir(opts.YtdlpPath)
	if env := opts.env(); env != nil {
		cmd.Env = runner.MergeEnv(os.Environ(), env)
	}
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ProbeResult{}, fmt.Errorf("yt-dlp metadata probe interrupted: %w", ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out := strings.TrimSpace(stdout.String())
			if out == "" {
				out = strings.TrimSpace(stderr.String())
			}
			return ProbeResult{}, &ProbeError{Kind: ProbeNonZeroExit, ExitCode: exitErr.ExitCode(), Output: out, Err: err}
		}
		if runner.IsNotFound(err) {
			return ProbeResult{}, fmt.Errorf("%w: %v", ErrExecutableNotFound, err)
		}
		return ProbeResult{}, fmt.Errorf("start yt-dlp: %w", err)
	}

	out := bytes.TrimSpace(stdout.Bytes())
	if len(out) == 0 {
		return ProbeResult{}, &ProbeError{Kind: ProbeEmptyOutput, Output: strings.TrimSpace(stderr.String())}
	}
	return ParseProbeOutput(out)
}

type probeDocument struct {
	Title    json.RawMessage `json:"title"`
	Language json.RawMessage `json:"language"`
	Formats  json.RawMessage `json:"formats"`
}

// ParseProbeOutput decodes a yt-dlp -J document. Format entries that do not
// decode, or lack a format_id, are skipped and reported in Warnings.
func ParseProbeOutput(data []byte) (ProbeResult, error) {
	var doc probeDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return ProbeResult{}, &ProbeError{Kind: ProbeParseError, Err: err}
	}

	res := ProbeResult{
		Title:    optionalString(doc.Title),
		Language: optionalString(doc.Language),
		Formats:  []model.Format{},
	}

	var entries []json.RawMessage
	if len(doc.Formats) > 0 && string(doc.Formats) != "null" {
		if err := json.Unmarshal(doc.Formats, &entries); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("formats field is not a list: %v", err))
			return res, nil
		}
	}
	for i, raw := range entries {
		var f model.Format
		if err := json.Unmarshal(raw, &f); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("skipping format #%d: %v", i, err))
			continue
		}
		f.ID = strings.TrimSpace(f.ID)
		if f.ID == "" {
			res.Warnings = append(res.Warnings, fmt.Sprintf("skipping format #%d: missing format_id", i))
			continue
		}
		res.Formats = append(res.Formats, f)
	}
	return res, nil
}

func optionalString(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

const (
	recodePostprocessorArgs = "VideoConvertor+ffmpeg:-c:v libx264 -crf 20 -preset medium -c:a aac -b:a 192k -movflags +faststart"
	mergePostprocessorArgs  = "Merger+ffmpeg:-c:v copy -c:a aac -b:a 192k"
)

func DownloadArgs(opts DownloadOptions) ([]string, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, fmt.Errorf("source URL is required")
	}
	if strings.TrimSpace(opts.OutputDir) == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if strings.TrimSpace(opts.Track.ID) == "" {
		return nil, fmt.Errorf("audio track is required")
	}

	args, err := appendCommonArgs(nil, opts.Tools)
	if err != nil {
		return nil, err
	}
	args = append(args, "--newline")
	if !opts.PlaylistEnabled {
		args = append(args, "--no-playlist")
	}

	track := opts.Track
	switch opts.Mode {
	case model.ModeAudio:
		audioFormat := strings.TrimSpace(opts.AudioFormat)
		if audioFormat == "" {
			audioFormat = "mp3"
		}
		args = append(args, "-x", "--audio-format", audioFormat, "-f", track.ID)
	default:
		if track.Combined {
			args = append(args, "-f", track.ID)
			if ext := track.ExtensionOrEmpty(); ext != "" && ext != "mp4" {
				args = append(args, "--recode-video", "mp4", "--postprocessor-args", recodePostprocessorArgs)
			} else {
				args = append(args, "--merge-output-format", "mp4")
			}
		} else {
			args = append(args,
				"--merge-output-format", "mp4",
				"--postprocessor-args", mergePostprocessorArgs,
				"-f", "bv*+"+track.ID,
			)
		}
	}

	if loc := strings.TrimSpace(opts.FFmpegLocation); loc != "" {
		args = append(args, "--ffmpeg-location", loc)
	}
	args = append(args, "-P", opts.OutputDir, opts.URL)
	return args, nil
}

func StartDownload(opts DownloadOptions) (*runner.Process, error) {
	args, err := DownloadArgs(opts)
	if err != nil {
		return nil, err
	}
	exe, err := ResolveExecutable(opts.YtdlpPath)
	if err != nil {
		return nil, err
	}
	return runner.Start(runner.Spec{
		Path: exe,
		Args: args,
		Dir:  workingDir(opts.YtdlpPath),
		Env:  opts.env(),
	})
}

func appendCommonArgs(args []string, tools Tools) ([]string, error) {
	runtime, ok := normalizeJSRuntime(tools.JSRuntime)
	if !ok {
		return nil, fmt.Errorf("invalid js runtime %q (expected auto, deno, node, quickjs, or bun)", strings.TrimSpace(tools.JSRuntime))
	}
	if runtime != "auto" {
		args = append(args, "--js-runtimes", runtime)
	}
	if extractor := strings.TrimSpace(tools.ExtractorArgs); extractor != "" {
		args = append(args, "--extractor-args", extractor)
	}
	return args, nil
}

func normalizeJSRuntime(raw string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "auto":
		return "auto", true
	case "deno", "node", "quickjs", "bun":
		return strings.ToLower(strings.TrimSpace(raw)), true
	default:
		return "", false
	}
}

func jsRuntimeBinaryCandidates(runtime string) []string {
	switch runtime {
	case "quickjs":
		return []string{"quickjs", "qjs"}
	default:
		return []string{runtime}
	}
}
