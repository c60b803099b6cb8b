package main

import (
	"os"

	"github.com/andresuchdata/mediastore/pkg/logger"
	"github.com/urfave/cli/v2"
)

func main() {
	env := &environment{}

	app := &cli.App{
		Name:  "mediactl",
		Usage: "Batch maintenance for the media buckets",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "console or json",
				Value:   "console",
				EnvVars: []string{"LOG_FORMAT"},
			},
		},
		Before: env.load,
		Commands: []*cli.Command{
			{
				Name:      "rename",
				Usage:     "Move every object of one owner to a new owner prefix on both backends",
				ArgsUsage: " ",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "from", Usage: "current owner identity", Required: true},
					&cli.StringFlag{Name: "to", Usage: "new owner identity", Required: true},
					&cli.StringSliceFlag{
						Name:  "backend",
						Usage: "backends to rename on",
						Value: cli.NewStringSlice("primary", "secondary"),
					},
				},
				Action: env.rename,
			},
			{
				Name:  "sync",
				Usage: "Copy objects missing on one backend from the other",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "from", Usage: "source backend", Value: "primary"},
					&cli.StringFlag{Name: "to", Usage: "destination backend", Value: "secondary"},
					&cli.StringFlag{Name: "prefix", Usage: "only keys under this prefix"},
					&cli.BoolFlag{Name: "dry-run", Usage: "report what would be copied without writing"},
				},
				Action: env.sync,
			},
			{
				Name:  "token",
				Usage: "Mint a bearer token for local testing",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Usage: "user id (token subject)", Required: true},
					&cli.DurationFlag{Name: "ttl", Usage: "token lifetime", Value: defaultTokenTTL},
				},
				Action: env.token,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("mediactl failed")
	}
}
