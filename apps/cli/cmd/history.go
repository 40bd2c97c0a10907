package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/hitman-sh/hitman/packages/history"
)

// historyFile sits next to the configuration, like the capture data file.
const historyFile = ".hitman-history.db"

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently executed requests",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := loadStore()
		if err != nil {
			return err
		}

		log, err := history.Open(filepath.Join(store.RootDir(), historyFile))
		if err != nil {
			return err
		}
		defer log.Close()

		entries, err := log.Recent(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%s  %3d  %-6s %s  %s (%s)\n",
				e.Created.Local().Format("2006-01-02 15:04:05"),
				e.Status, e.Method, e.URL, e.File,
				e.Duration.Round(time.Millisecond))
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "number of entries to show")
}
