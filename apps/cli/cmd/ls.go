package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hitman-sh/hitman/packages/request"
)

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List request templates in the project",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := loadStore()
		if err != nil {
			return err
		}

		files, err := request.FindRequests(store.RootDir())
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Println(f)
		}
		return nil
	},
}
