package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/couchcryptid/vent-capacity-service/internal/casefile"
	"github.com/couchcryptid/vent-capacity-service/internal/domain"
	"github.com/couchcryptid/vent-capacity-service/internal/export"
	"github.com/spf13/cobra"
)

// errMarginFailed marks an assessment that completed but did not pass.
var errMarginFailed = errors.New("venting capacity does not cover inflow")

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errMarginFailed):
		return 2
	default:
		return 1
	}
}

type options struct {
	profiles domain.FlashProfiles
	verbose  bool
	output   string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{profiles: domain.DefaultFlashProfiles()}

	root := &cobra.Command{
		Use:           "ventcalc",
		Short:         "Vent and flare header capacity calculator.",
		Long:          "Compute the venting capacity of a site's headers and compare it with the vapor inflow from its tanks and production streams.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.Float64Var(&opts.profiles.Oil.BaseFlashSCFPerBbl, "oil-base-flash", opts.profiles.Oil.BaseFlashSCFPerBbl, "oil base flash (SCF/bbl)")
	flags.Float64Var(&opts.profiles.Water.BaseFlashSCFPerBbl, "water-base-flash", opts.profiles.Water.BaseFlashSCFPerBbl, "water base flash (SCF/bbl)")
	flags.Float64Var(&opts.profiles.Water.CarryoverFlashSCFPerBbl, "water-carryover-flash", opts.profiles.Water.CarryoverFlashSCFPerBbl, "water carryover flash (SCF/bbl)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log calculation details to stderr")

	assessCmd := &cobra.Command{
		Use:   "assess <case.yaml|case.toml|case.json>",
		Short: "Print the assessment of a case as JSON.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.assess(args[0], stderr)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(a); err != nil {
				return err
			}
			return marginResult(a)
		},
	}

	exportCmd := &cobra.Command{
		Use:   "export <case>",
		Short: "Write a CSV snapshot of a case's assessment.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.assess(args[0], stderr)
			if err != nil {
				return err
			}
			if err := opts.writeSnapshot(cmd.OutOrStdout(), a); err != nil {
				return err
			}
			return marginResult(a)
		},
	}
	exportCmd.Flags().StringVarP(&opts.output, "output", "o", "-", "snapshot file, - for stdout")

	root.AddCommand(assessCmd, exportCmd)
	return root
}

func (o *options) assess(path string, stderr io.Writer) (domain.Assessment, error) {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	site, err := casefile.LoadSite(path)
	if err != nil {
		return domain.Assessment{}, err
	}
	a, err := domain.NewEngine(o.profiles).Assess(site)
	if err != nil {
		return domain.Assessment{}, err
	}

	for _, h := range a.Headers {
		if !h.EffectiveCapacity.Configured() {
			logger.Warn("header has no piping entered", "header", h.Name)
		}
		logger.Debug("header evaluated", "header", h.Name,
			"normalized_length_ft", h.TotalNormalizedLengthFt, "capacity", h.EffectiveCapacity.String())
	}
	logger.Debug("site assessed", "assessment_id", a.ID, "status", a.Margin.Status,
		"inflow_mmscfd", a.Inflow.TotalMMSCFD)
	return a, nil
}

func (o *options) writeSnapshot(stdout io.Writer, a domain.Assessment) error {
	if o.output == "" || o.output == "-" {
		return export.WriteCSV(stdout, a)
	}
	f, err := os.Create(o.output)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	if err := export.WriteCSV(f, a); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func marginResult(a domain.Assessment) error {
	if a.Margin.Passed() {
		return nil
	}
	return fmt.Errorf("%w: %s", errMarginFailed, a.Margin.Status)
}
