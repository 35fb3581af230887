package cmd

import (
	"fmt"

	"github.com/abdul-hamid-achik/hitquery/packages/cache"
	"github.com/spf13/cobra"
)

var cacheStoreFlag string

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage cached results",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached result",
	Long: `Remove every cached result from a store.

The session store only lives for one hitquery process, so clearing it is
only useful for scripts embedding the command. The local store is the
sqlite database shared by all runs.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := cache.Resolve(cache.StoreKind(cacheStoreFlag))
		if err != nil {
			return withExitCode(ExitConfigError, err)
		}
		if err := store.Clear(commandContext(cmd)); err != nil {
			return withExitCode(ExitConfigError, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s cache%s\n", cacheStoreFlag, location(store))
		return nil
	},
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove expired results from the local store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := cache.Local()
		if err != nil {
			return withExitCode(ExitConfigError, err)
		}
		n, err := store.Purge(commandContext(cmd))
		if err != nil {
			return withExitCode(ExitConfigError, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Purged %d expired entries (%s)\n", n, store.Path())
		return nil
	},
}

func location(store cache.Store) string {
	if s, ok := store.(*cache.SQLiteStore); ok {
		return " (" + s.Path() + ")"
	}
	return ""
}

func init() {
	cacheClearCmd.Flags().StringVar(&cacheStoreFlag, "store", string(cache.StoreLocal), "Store to clear: session or local")
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cachePurgeCmd)
}
