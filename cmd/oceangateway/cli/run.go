package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"oceangateway/internal/export"
	"oceangateway/internal/publish"
	"oceangateway/internal/qc"

	"github.com/spf13/cobra"
)

// runOptions are the flags shared by run and watch.
type runOptions struct {
	exportDir    string
	exportFormat export.Format
	publish      []string
	output       string
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().String("export", "", `write flagged datasets to this directory ("home" for <home>/exports)`)
	cmd.Flags().String("export-format", string(export.FormatParquet), "tabular export format: parquet, csv or csv.zst")
	cmd.Flags().StringSlice("publish", nil, "publish the QC report to a broker URL (kafka://host/topic, mqtt://host/topic)")
}

func runOptionsFromFlags(cmd *cobra.Command, e *env) (runOptions, error) {
	dir, _ := cmd.Flags().GetString("export")
	formatName, _ := cmd.Flags().GetString("export-format")
	targets, _ := cmd.Flags().GetStringSlice("publish")

	format, err := export.ParseFormat(formatName)
	if err != nil {
		return runOptions{}, err
	}
	if dir == "home" {
		dir = e.home.ExportDir()
	}
	for _, t := range targets {
		if _, err := publish.ParseTarget(t); err != nil {
			return runOptions{}, err
		}
	}
	return runOptions{exportDir: dir, exportFormat: format, publish: targets, output: outputFormat(cmd)}, nil
}

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch data from every configured source and quality-check it",
		Long: "Expands the gateway configuration into readers, fetches their data, " +
			"runs the gross range check and prints the per-variable flag counts.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := a.openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			opts, err := runOptionsFromFlags(cmd, e)
			if err != nil {
				return err
			}
			_, err = runOnce(cmd.Context(), e, opts, cmd.OutOrStdout())
			return err
		},
	}
	addRunFlags(cmd)
	return cmd
}

// runOnce builds a fresh gateway, runs QC, prints the report, then exports
// and publishes as requested.
func runOnce(ctx context.Context, e *env, opts runOptions, w io.Writer) (qc.Report, error) {
	g, err := e.newGateway(ctx)
	if err != nil {
		return qc.Report{}, err
	}
	data, report, err := g.QC(ctx)
	if err != nil {
		return qc.Report{}, err
	}
	if err := newPrinter(opts.output, w).report(g.Plans(), report); err != nil {
		return report, err
	}

	if opts.exportDir != "" {
		labels := make([]string, len(g.Plans()))
		for i, p := range g.Plans() {
			labels[i] = planLabel(p)
		}
		dir := filepath.Join(opts.exportDir, report.Session)
		if _, err := export.New(dir, opts.exportFormat, e.logger).WriteAll(labels, data); err != nil {
			return report, err
		}
	}

	for _, target := range opts.publish {
		if err := publishTo(ctx, e, target, report); err != nil {
			return report, err
		}
	}
	return report, nil
}

func publishTo(ctx context.Context, e *env, target string, report qc.Report) error {
	p, err := publish.Open(ctx, target, e.logger)
	if err != nil {
		return err
	}
	defer p.Close()
	if err := p.Publish(ctx, report); err != nil {
		return fmt.Errorf("publish to %s: %w", target, err)
	}
	return nil
}
