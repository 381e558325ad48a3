// Package targetcmd manages named deployment targets.
package targetcmd

import "github.com/spf13/cobra"

// Cmd returns the parent "siteup target" command.
func Cmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "target",
		Short: "Manage deployment targets",
	}

	cmd.AddCommand(listCmd())
	cmd.AddCommand(showCmd())
	cmd.AddCommand(useCmd())
	cmd.AddCommand(addCmd())
	cmd.AddCommand(removeCmd())
	return cmd
}
