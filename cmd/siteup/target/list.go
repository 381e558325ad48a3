package targetcmd

import (
	"fmt"
	"sort"

	"siteup/cmd/siteup/ui"
	"siteup/config"

	"github.com/spf13/cobra"
)

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured targets",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			if len(cfg.Targets) == 0 {
				fmt.Println(ui.InfoMsg("No targets configured."))
				return nil
			}

			names := make([]string, 0, len(cfg.Targets))
			for name := range cfg.Targets {
				names = append(names, name)
			}
			sort.Strings(names)

			var rows [][]string
			for _, name := range names {
				t := cfg.Targets[name]

				current := ""
				if name == cfg.CurrentTarget {
					current = "*"
				}
				rows = append(rows, []string{current, name, t.ProjectDir, t.Bucket, t.Stack})
			}

			fmt.Println(ui.Table([]string{"", "NAME", "PROJECT", "BUCKET", "STACK"}, rows))
			return nil
		},
	}
}
