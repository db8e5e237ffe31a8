package cli

import (
	"errors"
	"flag"
	"fmt"

	"ytdlp-queue/internal/config"
)

func runDoctor(args []string) error {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	configPath := fs.String("config", "", "settings file (default $XDG_CONFIG_HOME/ytdlp-queue/config.yaml)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	settings, path, err := loadSettings(*configPath)
	if err != nil {
		return err
	}
	res := config.Doctor(settings, path)
	if *jsonOut {
		if err := printJSON(res); err != nil {
			return err
		}
	} else {
		for _, c := range res.Checks {
			status := okStyle.Render("ok")
			if !c.OK {
				status = errorStyle.Render("fail")
			}
			fmt.Printf("%s: %s (%s)\n", c.Name, status, c.Message)
		}
	}
	if !res.OK {
		return errors.New("doctor checks failed")
	}
	if !*jsonOut {
		fmt.Println("doctor: all checks passed")
	}
	return nil
}
