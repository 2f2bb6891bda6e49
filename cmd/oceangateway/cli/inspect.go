package cli

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"oceangateway/internal/gateway"
	"oceangateway/internal/source"

	"github.com/spf13/cobra"
)

func newIDsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ids",
		Short: "List the dataset ids each reader finds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := a.openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			g, err := e.newGateway(cmd.Context())
			if err != nil {
				return err
			}
			ids, err := g.DatasetIDs(cmd.Context())
			if err != nil {
				return err
			}
			return newPrinter(outputFormat(cmd), cmd.OutOrStdout()).ids(g.Plans(), ids)
		},
	}
}

func newMetaCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "meta",
		Short: "Show title, coverage and variables of every dataset found",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := a.openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			g, err := e.newGateway(cmd.Context())
			if err != nil {
				return err
			}
			ids, err := g.DatasetIDs(cmd.Context())
			if err != nil {
				return err
			}
			meta, err := g.Meta(cmd.Context())
			if err != nil {
				return err
			}
			return newPrinter(outputFormat(cmd), cmd.OutOrStdout()).meta(g.Plans(), ids, meta)
		},
	}
}

func newVariablesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "variables <source>",
		Short: "List, search or check the variables a source serves",
		Long: "Lists the variable names the configured instances of a source type serve, " +
			"with the number of datasets carrying each. --search filters by substring; " +
			"--check fails unless every given name is served.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			search, _ := cmd.Flags().GetString("search")
			check, _ := cmd.Flags().GetStringSlice("check")

			e, err := a.openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			def, ok := e.table.Lookup(args[0])
			if !ok {
				return fmt.Errorf("unknown source type %q (have %s)", args[0], strings.Join(e.table.Names(), ", "))
			}
			cfg, err := e.loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			only := *cfg
			only.Readers = []string{def.Name}
			plans, err := gateway.Expand(&only, e.table)
			if err != nil {
				return err
			}

			var all []source.VariableCount
			for _, p := range plans {
				vars, err := source.ListVariables(cmd.Context(), def.Type, p.Spec)
				if err != nil {
					return fmt.Errorf("%s: %w", planLabel(p), err)
				}
				all = mergeCounts(all, vars)
			}
			if len(check) > 0 {
				if err := source.CheckVariables(all, check); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "all %d variables served by %s\n", len(check), def.Name)
				return nil
			}
			if search != "" {
				all = source.SearchVariables(all, search)
			}
			return newPrinter(outputFormat(cmd), cmd.OutOrStdout()).variables(all)
		},
	}
	cmd.Flags().String("search", "", "only variables whose name contains this text")
	cmd.Flags().StringSlice("check", nil, "variable names that must all be served")
	return cmd
}

// mergeCounts adds b's counts into a and returns the result sorted by
// name.
func mergeCounts(a, b []source.VariableCount) []source.VariableCount {
	idx := make(map[string]int, len(a))
	for i, v := range a {
		idx[v.Name] = i
	}
	for _, v := range b {
		if i, ok := idx[v.Name]; ok {
			a[i].Count += v.Count
			continue
		}
		idx[v.Name] = len(a)
		a = append(a, v)
	}
	slices.SortFunc(a, func(x, y source.VariableCount) int { return cmp.Compare(x.Name, y.Name) })
	return a
}
