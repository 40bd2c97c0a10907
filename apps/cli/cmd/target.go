package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hitman-sh/hitman/packages/config"
)

var targetCmd = &cobra.Command{
	Use:   "target [name]",
	Short: "Show or select the active target",
	Long: `Without arguments, lists the targets defined in hitman.toml and marks
the active one. With a name, selects that target for subsequent runs.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := loadStore()
		if err != nil {
			return err
		}

		if len(args) == 1 {
			if err := store.SetTarget(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "# Target set to %s\n", args[0])
			return nil
		}

		current := store.Target()
		for _, t := range store.Targets() {
			marker := " "
			if t == current {
				marker = "*"
			}
			fmt.Printf("%s %s\n", marker, t)
		}
		return nil
	},
}

func loadStore() (*config.Store, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	rootDir, err := config.FindRootDir(cwd)
	if err != nil {
		return nil, err
	}
	return config.Load(rootDir)
}
