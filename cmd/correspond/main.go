// Package main is a command line tool that computes pixel correspondences between two RGB-D
// views stored on disk.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"os"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/densecorr/correspondence"
	"go.viam.com/densecorr/logging"
	"go.viam.com/densecorr/rimage"
)

const (
	// Flags.
	flagDebug    = "debug"
	flagConfig   = "config"
	flagScene    = "scene"
	flagOut      = "out"
	flagSeed     = "seed"
	flagPerMatch = "per-match"
	flagIn       = "in"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	var logger logging.Logger

	return &cli.App{
		Name:      "correspond",
		Usage:     "find dense pixel correspondences between two RGB-D views",
		Writer:    out,
		ErrWriter: out,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool(flagDebug) {
				logger = logging.NewDebugLogger("correspond")
			} else {
				logger = logging.NewLogger("correspond")
			}
			return nil
		},
		After: func(c *cli.Context) error {
			if logger == nil {
				return nil
			}
			//nolint:errcheck
			logger.Sync()
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "match",
				Usage:     "build a training pair from a scene file",
				UsageText: "correspond match --scene <scene.json> [--config <config.json>] [--out <pair.json>]",
				Flags: []cli.Flag{
					&cli.PathFlag{
						Name:     flagScene,
						Usage:    "scene `FILE` describing views A and B",
						Required: true,
					},
					&cli.PathFlag{
						Name:    flagConfig,
						Aliases: []string{"c"},
						Usage:   "load correspondence configuration from `FILE`",
					},
					&cli.PathFlag{
						Name:  flagOut,
						Usage: "write the training pair as JSON to `FILE`",
					},
					&cli.Uint64Flag{
						Name:  flagSeed,
						Usage: "random seed",
						Value: 1,
					},
					&cli.IntFlag{
						Name:  flagPerMatch,
						Usage: "non-matches per match, 0 uses the configured value",
					},
				},
				Action: func(c *cli.Context) error {
					return matchAction(c, logger)
				},
			},
			{
				Name:      "convert-depth",
				Usage:     "convert a 16 bit depth image to a compressed TIFF",
				UsageText: "correspond convert-depth --in <depth.png> --out <depth.tiff>",
				Flags: []cli.Flag{
					&cli.PathFlag{Name: flagIn, Required: true, Usage: "depth image `FILE` to read"},
					&cli.PathFlag{Name: flagOut, Required: true, Usage: "TIFF `FILE` to write"},
				},
				Action: func(c *cli.Context) error {
					dm, err := rimage.ReadDepthMapFromFile(c.Path(flagIn))
					if err != nil {
						return err
					}
					if err := rimage.WriteDepthMapToFile(dm, c.Path(flagOut)); err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "wrote %dx%d depth map to %s\n", dm.Width(), dm.Height(), c.Path(flagOut))
					return nil
				},
			},
		},
	}
}

func matchAction(c *cli.Context, logger logging.Logger) error {
	cfg := correspondence.DefaultConfig()
	if fn := c.Path(flagConfig); fn != "" {
		loaded, err := correspondence.LoadConfigFile(fn)
		if err != nil {
			return err
		}
		cfg = *loaded
	}
	finder, err := correspondence.NewFinder(cfg, logger.Sublogger("finder"))
	if err != nil {
		return err
	}
	a, b, err := loadScene(c.Path(flagScene))
	if err != nil {
		return err
	}

	seed := c.Uint64(flagSeed)
	rng := rand.New(rand.NewPCG(seed, seed))
	pair, err := finder.BuildTrainingPair(rng, a, b, c.Int(flagPerMatch))
	if err != nil {
		return err
	}
	if err := printSummary(c.App.Writer, pair); err != nil {
		return err
	}
	if fn := c.Path(flagOut); fn != "" {
		if err := writePair(fn, pair); err != nil {
			return err
		}
		logger.Infow("wrote training pair", "file", fn)
	}
	return nil
}

// displacements returns how far, in pixels, each match moved between A and B.
func displacements(matches correspondence.CorrespondenceBatch) stats.Float64Data {
	out := make(stats.Float64Data, matches.Len())
	for i := range out {
		d := matches.B.At(i).Sub(matches.A.At(i))
		out[i] = math.Hypot(float64(d.X), float64(d.Y))
	}
	return out
}

func printSummary(w io.Writer, pair correspondence.TrainingPair) error {
	fmt.Fprintf(w, "status: %s\n", pair.Status)
	if pair.Empty() {
		return nil
	}
	fmt.Fprintf(w, "matches: %d\n", pair.Matches.Len())
	fmt.Fprintf(w, "non-matches per match: %d\n", pair.MaskedNonMatchesB.PerMatch())

	disp := displacements(pair.Matches)
	mean, err := stats.Mean(disp)
	if err != nil {
		return errors.Wrap(err, "error computing mean displacement")
	}
	median, err := stats.Median(disp)
	if err != nil {
		return errors.Wrap(err, "error computing median displacement")
	}
	maxDisp, err := stats.Max(disp)
	if err != nil {
		return errors.Wrap(err, "error computing max displacement")
	}
	fmt.Fprintf(w, "displacement px: mean %.2f median %.2f max %.2f\n", mean, median, maxDisp)
	return nil
}

type pairOutput struct {
	Status                string     `json:"status"`
	MatchesA              [][2]int   `json:"matches_a"`
	MatchesB              [][2]int   `json:"matches_b"`
	MaskedNonMatchesB     [][][2]int `json:"masked_non_matches_b"`
	BackgroundNonMatchesB [][][2]int `json:"background_non_matches_b"`
}

func pixelsToPairs(b correspondence.PixelBatch) [][2]int {
	out := make([][2]int, b.Len())
	for i := range out {
		pt := b.At(i)
		out[i] = [2]int{pt.X, pt.Y}
	}
	return out
}

func nonMatchesToPairs(nb correspondence.NonCorrespondenceBatch) [][][2]int {
	out := make([][][2]int, nb.NumMatches())
	for i := range out {
		out[i] = pixelsToPairs(nb.Row(i))
	}
	return out
}

func writePair(fn string, pair correspondence.TrainingPair) error {
	out := pairOutput{
		Status:                pair.Status.String(),
		MatchesA:              pixelsToPairs(pair.Matches.A),
		MatchesB:              pixelsToPairs(pair.Matches.B),
		MaskedNonMatchesB:     nonMatchesToPairs(pair.MaskedNonMatchesB),
		BackgroundNonMatchesB: nonMatchesToPairs(pair.BackgroundNonMatchesB),
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return errors.Wrap(err, "error encoding training pair")
	}
	//nolint:gosec
	return errors.Wrapf(os.WriteFile(fn, data, 0o644), "error writing %q", fn)
}
