package main

import (
	"fmt"
	"os"

	"siteup/cmd/siteup/deploy"
	historycmd "siteup/cmd/siteup/history"
	targetcmd "siteup/cmd/siteup/target"
	"siteup/cmd/siteup/ui"
	"siteup/internal/buildinfo"
	"siteup/internal/logging"

	"github.com/spf13/cobra"
)

func main() {
	var (
		debug         bool
		noInteraction bool
	)
	if err := logging.Configure(logging.LevelWarn); err != nil {
		_, _ = os.Stderr.WriteString("configure logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	root := &cobra.Command{
		Use:           "siteup",
		Short:         "Build and deploy static sites to provisioned cloud hosting",
		Version:       buildinfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logging.LevelWarn
			if debug {
				level = logging.LevelDebug
			}
			if err := logging.Configure(level); err != nil {
				return err
			}
			ui.ConfigureInteraction(noInteraction)
			return nil
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().BoolVar(&noInteraction, "no-interaction", false, "Disable prompts, spinners, and colors")

	root.AddCommand(deploy.Cmd())
	root.AddCommand(targetcmd.Cmd())
	root.AddCommand(historycmd.Cmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.ErrorMsg("%v", err))
		os.Exit(1)
	}
}
