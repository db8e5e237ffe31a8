package cli

import "fmt"

func Run(args []string) error {
	if len(args) == 0 {
		printRootUsage()
		return nil
	}

	switch args[0] {
	case "run":
		return runQueue(args[1:])
	case "probe":
		return runProbe(args[1:])
	case "history":
		return runHistory(args[1:])
	case "settings":
		return runSettings(args[1:])
	case "doctor":
		return runDoctor(args[1:])
	case "help", "-h", "--help":
		printRootUsage()
		return nil
	default:
		printRootUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printRootUsage() {
	fmt.Println("ytdlp-queue: download a batch of URLs with yt-dlp, one at a time")
	fmt.Println()
	fmt.Println("Quick Start:")
	fmt.Println("  ytdlp-queue doctor")
	fmt.Println("  ytdlp-queue run <url> [<url>...]")
	fmt.Println("  ytdlp-queue run --file urls.txt --mode audio --tui")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  run       queue URLs (args, --file, or - for stdin) and download them in order")
	fmt.Println("  probe     list the formats of a URL and the audio track that would be used")
	fmt.Println("  history   show finished jobs (newest first)")
	fmt.Println("  settings  show or update settings (--set key=value)")
	fmt.Println("  doctor    check yt-dlp, ffmpeg and the configured directories")
	fmt.Println()
	fmt.Println("Notes:")
	fmt.Println("  - Use --json on commands for machine-readable output")
	fmt.Println("  - Settings live in $XDG_CONFIG_HOME/ytdlp-queue/config.yaml (override with --config)")
}
