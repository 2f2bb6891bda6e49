package cli

import (
	"fmt"

	"oceangateway/internal/cache"

	"github.com/spf13/cobra"
)

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the listing cache",
	}
	cmd.AddCommand(newCacheClearCmd(a))
	return cmd
}

func newCacheClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Drop every cached server listing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			homeFlag, _ := cmd.Flags().GetString("home")
			hd, err := resolveHome(homeFlag)
			if err != nil {
				return fmt.Errorf("resolve home directory: %w", err)
			}
			n, err := cache.New(hd.CacheDir(), 0, a.logger).Clear()
			if err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %d cache entries\n", n)
			return err
		},
	}
}
