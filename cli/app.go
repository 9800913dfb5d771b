// Package cli contains the lfd command line: estimating ellipsoids from a scene file, inspecting
// detections and printing file schemas.
package cli

import (
	"fmt"
	"io"

	"github.com/urfave/cli/v2"
)

const (
	// Flags.
	flagDebug     = "debug"
	flagConfig    = "config"
	flagScene     = "scene"
	flagOutput    = "output"
	flagMinViews  = "min-views"
	flagParallel  = "parallel"
	flagTolerance = "tolerance"

	schemaScene  = "scene"
	schemaConfig = "config"
)

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:            "lfd",
		Usage:           "localise objects as ellipsoids from their detections in calibrated frames",
		HideHelpCommand: true,
		Writer:          out,
		ErrWriter:       errOut,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "estimate",
				Usage:     "estimate one ellipsoid per object of a scene",
				UsageText: fmt.Sprintf("lfd estimate [--%s FILE | --%s FILE] [other options]", flagConfig, flagScene),
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    flagConfig,
						Aliases: []string{"c"},
						Usage:   "load run configuration from `FILE`",
					},
					&cli.StringFlag{
						Name:  flagScene,
						Usage: "scene `FILE` to estimate, overrides the config",
					},
					&cli.StringFlag{
						Name:    flagOutput,
						Aliases: []string{"o"},
						Usage:   "write the JSON report to `FILE`",
					},
					&cli.IntFlag{
						Name:  flagMinViews,
						Usage: "number of frames an object must be detected in",
					},
					&cli.BoolFlag{
						Name:  flagParallel,
						Usage: "estimate objects concurrently",
					},
					&cli.Float64Flag{
						Name:  flagTolerance,
						Usage: "relative tolerance used to reject estimates that are not ellipsoids",
					},
				},
				Action: EstimateAction,
			},
			{
				Name:  "visibility",
				Usage: "print which objects are visible in which frames",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     flagScene,
						Required: true,
						Usage:    "scene `FILE` to inspect",
					},
				},
				Action: VisibilityAction,
			},
			{
				Name:      "schema",
				Usage:     "print the JSON schema of scene or config files",
				ArgsUsage: fmt.Sprintf("<%s|%s>", schemaScene, schemaConfig),
				Action:    SchemaAction,
			},
		},
	}
}
