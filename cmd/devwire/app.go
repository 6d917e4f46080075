package main

import (
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/anirudhraja/devwire"
	"github.com/anirudhraja/devwire/config"
	"github.com/anirudhraja/devwire/logger"
)

// session holds what the Before hook prepares for the commands.
type session struct {
	settings *config.Settings
	dw       *devwire.Devwire
}

func newApp() *cli.App {
	s := &session{}
	return &cli.App{
		Name:  "devwire",
		Usage: "decode, encode and inspect device wire messages",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "config file (yaml, toml or json)",
				EnvVars: []string{config.EnvPrefix + "_CONFIG"},
			},
			&cli.StringSliceFlag{
				Name:    "schema",
				Aliases: []string{"s"},
				Usage:   "proto file or directory to load; the built-in Features schema is used when none is given",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "output format: json, yaml or cbor",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "debug logging",
			},
		},
		Before: s.setup,
		Commands: []*cli.Command{
			s.decodeCmd(),
			s.encodeCmd(),
			s.fieldsCmd(),
			s.checkCmd(),
		},
	}
}

// setup merges the config file, environment and flags, then loads schemas.
func (s *session) setup(c *cli.Context) error {
	settings, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("schema") {
		settings.SchemaPaths = c.StringSlice("schema")
	}
	if c.IsSet("output") {
		settings.Output = c.String("output")
	}
	if c.IsSet("verbose") {
		settings.Verbose = c.Bool("verbose")
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	l, err := logger.NewCli(settings.Verbose)
	if err != nil {
		return err
	}
	logger.SetLogger(l)
	settings.Apply()

	dw, err := loadSchemas(settings.SchemaPaths)
	if err != nil {
		return err
	}
	dw.WithConfig(settings.Wire)

	logger.Logger.Debug("schemas loaded",
		zap.Strings("paths", settings.SchemaPaths),
		zap.Strings("messages", dw.ListMessages()))

	s.settings = settings
	s.dw = dw
	return nil
}

func loadSchemas(paths []string) (*devwire.Devwire, error) {
	if len(paths) == 0 {
		return devwire.NewWithFeatures()
	}
	dw := devwire.New()
	for _, path := range paths {
		if err := dw.LoadSchema(path); err != nil {
			return nil, err
		}
	}
	return dw, nil
}
