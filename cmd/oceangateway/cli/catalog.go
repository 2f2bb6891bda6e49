package cli

import (
	"fmt"

	"oceangateway/internal/catalog"

	"github.com/spf13/cobra"
)

func newCatalogCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect and manage the variable catalog used by QC",
	}
	cmd.AddCommand(
		newCatalogListCmd(a),
		newCatalogSearchCmd(a),
		newCatalogImportCmd(a),
		newCatalogExportCmd(a),
		newCatalogDeleteCmd(a),
	)
	return cmd
}

func newCatalogListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the catalog variables in effect",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := a.openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()
			return newPrinter(outputFormat(cmd), cmd.OutOrStdout()).definitions(e.catalog.Definitions())
		},
	}
}

func newCatalogSearchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "search <term>",
		Short: "Find catalog variables by name, units or pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			var defs []catalog.Definition
			for _, name := range e.catalog.Search(args[0]) {
				d, _ := e.catalog.Lookup(name)
				defs = append(defs, d)
			}
			return newPrinter(outputFormat(cmd), cmd.OutOrStdout()).definitions(defs)
		},
	}
}

func newCatalogImportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import catalog variables from a JSON or YAML file into the home catalog",
		Long:  "Upserts every variable of the file into <home>/catalog.db. With --replace, existing variables are removed first.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			replace, _ := cmd.Flags().GetBool("replace")

			c, err := catalog.Load(args[0])
			if err != nil {
				return err
			}
			e, err := a.openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			db, err := e.openCatalogDB()
			if err != nil {
				return err
			}
			if err := db.Save(cmd.Context(), c, replace); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Imported %d variables\n", c.Len())
			return nil
		},
	}
	cmd.Flags().Bool("replace", false, "delete all existing variables before importing")
	return cmd
}

func newCatalogExportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print the catalog in effect as JSON or YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, _ := cmd.Flags().GetString("format")

			e, err := a.openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			b, err := catalog.Encode(e.catalog, format)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}
	cmd.Flags().String("format", catalog.FormatYAML, "output format: yaml or json")
	return cmd
}

func newCatalogDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Remove a variable from the home catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			db, err := e.openCatalogDB()
			if err != nil {
				return err
			}
			return db.Delete(cmd.Context(), args[0])
		},
	}
}
