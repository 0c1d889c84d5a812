package commands

import (
	"eamis-catcher/lib/util/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(profilesCmd)
}

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Lists the election profiles currently open.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		e := loadEnv(cmd.Context())
		defer e.Close()
		client := e.client(cmd.Context())

		profiles, err := client.Profiles(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to list profiles", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Profile", "Title", "Tips"})
		for _, p := range profiles {
			t.AppendRow(table.Row{p.Id, p.Title, p.Tips})
		}
		t.Render()
	},
}
