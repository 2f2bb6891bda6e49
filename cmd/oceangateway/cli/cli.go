// Package cli implements the oceangateway command tree.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"oceangateway/internal/logging"

	"github.com/spf13/cobra"
)

// app carries state shared by every command once flags are parsed.
type app struct {
	version string
	logger  *slog.Logger
	filter  *logging.ComponentFilterHandler
}

// NewRootCommand returns the oceangateway command with all subcommands.
func NewRootCommand(version string) *cobra.Command {
	a := &app{version: version, logger: logging.Discard()}

	root := &cobra.Command{
		Use:          "oceangateway",
		Short:        "Query and quality-check ocean datasets from many sources",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setupLogging(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.String("home", "", "home directory (default: platform config dir)")
	pf.String("config", "", "gateway configuration file (default: <home>/gateway.yaml)")
	pf.String("inline", "", "gateway configuration as inline YAML or JSON; overrides --config")
	pf.String("catalog", "", "variable catalog file (default: <home>/catalog.db, else built-in)")
	pf.StringP("output", "o", "table", "output format: table or json")
	pf.String("log-level", "info", "log level: debug, info, warn or error")
	pf.String("log-format", logging.FormatPretty, "log format: pretty, text or json")
	pf.StringSlice("log-component", nil, "per-component log level, e.g. erddap=debug")
	pf.Bool("no-color", false, "disable colored log output")
	pf.Float64("rate", 5, "max HTTP requests per second (0 = unlimited)")
	pf.Duration("cache-ttl", time.Hour, "listing cache lifetime (0 disables the cache)")

	root.AddCommand(
		newRunCmd(a),
		newIDsCmd(a),
		newMetaCmd(a),
		newVariablesCmd(a),
		newCatalogCmd(a),
		newCacheCmd(a),
		newConfigCmd(a),
		newWatchCmd(a),
		newVersionCmd(a),
	)
	return root
}

func (a *app) setupLogging(cmd *cobra.Command) error {
	format, _ := cmd.Flags().GetString("log-format")
	levelName, _ := cmd.Flags().GetString("log-level")
	noColor, _ := cmd.Flags().GetBool("no-color")
	components, _ := cmd.Flags().GetStringSlice("log-component")

	color := !noColor && os.Getenv("NO_COLOR") == ""
	h, err := logging.NewHandler(cmd.ErrOrStderr(), format, color)
	if err != nil {
		return err
	}
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return err
	}
	a.filter = logging.NewComponentFilterHandler(h, level)
	for _, c := range components {
		name, lvl, ok := strings.Cut(c, "=")
		if !ok || name == "" {
			return fmt.Errorf("--log-component %q: want component=level", c)
		}
		l, err := logging.ParseLevel(lvl)
		if err != nil {
			return err
		}
		a.filter.SetLevel(name, l)
	}
	a.logger = slog.New(a.filter)
	for _, c := range components {
		name, _, _ := strings.Cut(c, "=")
		a.logger.Debug("component log level", "component", name, "level", a.filter.Level(name), "default", a.filter.DefaultLevel())
	}
	return nil
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), a.version)
		},
	}
}

// outputFormat returns "json" or "table" from the --output flag.
func outputFormat(cmd *cobra.Command) string {
	f, _ := cmd.Flags().GetString("output")
	return f
}
