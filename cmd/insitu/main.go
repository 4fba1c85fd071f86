// Command insitu runs the demo particle simulation under the adaptive
// camera controller and writes the selected images to disk.
//
// A local run starts every rank as a goroutine:
//
//	insitu run --config run.yaml --ranks 4
//
// A TCP run starts one process per rank; rank 0 listens on the group address:
//
//	insitu run --tcp --rank 0 --ranks 2 --addr 127.0.0.1:7700
//	insitu run --tcp --rank 1 --ranks 2 --addr 127.0.0.1:7700
package main

import (
	"log/slog"
	"os"

	"github.com/urfave/cli"

	"github.com/gogpu/insitu"
)

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "insitu"
	app.Usage = "steer a camera through a running simulation by viewpoint entropy"
	app.Version = insitu.Version
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
	}
	app.Before = func(c *cli.Context) error {
		setupLogging(c.GlobalBool("v"), c.GlobalBool("vv"))
		return nil
	}
	app.Commands = []cli.Command{
		{
			Name:  "run",
			Usage: "run the demo simulation and write the selected images",
			Description: `
Advance the heated-sphere particle simulation and hand every step to the
controller. Keyframe candidates and the replayed camera paths are written to
the output directory, along with CSV telemetry and a run manifest.`,
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "config, c",
					Usage: "YAML configuration file",
				},
				cli.IntFlag{
					Name:  "ranks, n",
					Usage: "number of ranks (overrides the config)",
				},
				cli.IntFlag{
					Name:  "steps",
					Usage: "simulation steps (overrides the config)",
				},
				cli.StringFlag{
					Name:  "out, o",
					Usage: "output directory (overrides the config)",
				},
				cli.BoolFlag{
					Name:  "tcp",
					Usage: "join a TCP group instead of running every rank locally",
				},
				cli.IntFlag{
					Name:  "rank",
					Usage: "rank of this process in a TCP group",
				},
				cli.StringFlag{
					Name:  "addr",
					Usage: "address of rank 0 in a TCP group (overrides the config)",
				},
				cli.BoolFlag{
					Name:  "quiet, q",
					Usage: "hide the progress bar and the summary",
				},
			},
			Action: runAction,
		},
		{
			Name:      "entropy",
			Usage:     "print the viewpoint entropy of image files",
			ArgsUsage: "image1.png image2.png ...",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "measure, m",
					Value: "lightness",
					Usage: "entropy measure: lightness, color, depth or mixed",
				},
			},
			Action: entropyAction,
		},
	}

	if err := app.Run(os.Args); err != nil {
		insitu.Logger().Error("insitu failed", "err", err)
		os.Exit(1)
	}
}

func setupLogging(verbose, debug bool) {
	level := slog.LevelWarn
	switch {
	case debug:
		level = slog.LevelDebug
	case verbose:
		level = slog.LevelInfo
	}
	insitu.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
