package commands

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Lists the enabled sources and how they paginate.",
	RunE: func(cmd *cobra.Command, args []string) error {
		infos, err := sourceInfos(cfg)
		if err != nil {
			return err
		}

		renderSources(cmd.OutOrStdout(), infos)
		return nil
	},
}
