package cli

import (
	"errors"
	"fmt"

	"oceangateway/internal/config"
	"oceangateway/internal/gateway"

	"github.com/spf13/cobra"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or inspect the gateway configuration",
	}
	cmd.AddCommand(newConfigInitCmd(a), newConfigShowCmd(a))
	return cmd
}

// starterConfig searches the IOOS ERDDAP server for one Monterey Bay buoy.
var starterConfig = map[string]any{
	config.KeyApproach: string(config.ApproachStations),
	config.KeyReaders:  []any{"erddap"},
	"erddap": map[string]any{
		"known_server": []any{"ioos"},
		"stations":     []any{"46042"},
	},
}

func newConfigInitCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			force, _ := cmd.Flags().GetBool("force")

			e, err := a.openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			if e.configPath == "" {
				return errors.New("config init writes a file; drop --inline")
			}
			existing, err := e.store.Load(cmd.Context())
			if err != nil {
				return err
			}
			if existing != nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", e.configPath)
			}
			if _, err := config.Parse(starterConfig, e.table.Names()); err != nil {
				return err
			}
			if err := e.store.Save(cmd.Context(), starterConfig); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", e.configPath)
			return nil
		},
	}
	cmd.Flags().Bool("force", false, "overwrite an existing configuration")
	return cmd
}

type planJSON struct {
	Reader string         `json:"reader"`
	ID     string         `json:"id"`
	Spec   map[string]any `json:"spec"`
}

func newConfigShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the reader instances the configuration expands into",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := a.openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			cfg, err := e.loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			plans, err := gateway.Expand(cfg, e.table)
			if err != nil {
				return err
			}
			p := newPrinter(outputFormat(cmd), cmd.OutOrStdout())
			if p.format == "json" {
				out := make([]planJSON, len(plans))
				for i, pl := range plans {
					out[i] = planJSON{Reader: planLabel(pl), ID: pl.ID.String(), Spec: pl.Spec.Map()}
				}
				return p.json(out)
			}
			pairs := [][2]string{
				{"approach", string(cfg.Approach)},
				{"parallel", fmt.Sprint(cfg.Parallel)},
			}
			if e.configPath != "" {
				pairs = append([][2]string{{"file", e.configPath}}, pairs...)
			}
			for _, pl := range plans {
				pairs = append(pairs, [2]string{planLabel(pl), pl.ID.String()})
			}
			p.kv(pairs)
			return nil
		},
	}
}
