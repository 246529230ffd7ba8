package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/mlcatalog/mlsearch/internal/config"
	"github.com/mlcatalog/mlsearch/internal/version"
)

func main() {
	app := &cli.Command{
		Name:    "mlsearch",
		Usage:   "Faceted search over the ML metadata catalog",
		Version: version.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env",
				Usage: "Configuration environment (local, dev, prod)",
				Value: config.GetEnv(),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override the configured log level",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			compileCommand(),
			searchCommand(),
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "mlsearch:", err)
		os.Exit(1)
	}
}
