// smftool creates, inspects and extracts map container files.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
)

var fs afero.Fs = afero.NewOsFs()

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	app := &cli.App{
		Name:  "smftool",
		Usage: "Map container tool",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "Read defaults from a config file (yaml, toml or json)", EnvVars: []string{"SMF_CONFIG"}, TakesFile: true},
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "Set log level (panic, fatal, error, warn, info, debug, trace)"},
			&cli.StringFlag{Name: "log-file", Usage: "Write logs to a rotated file instead of stderr", TakesFile: true},
		},
		Before:   setup,
		Commands: []*cli.Command{createCommand, infoCommand, extractCommand, backupCommand, restoreCommand},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}
