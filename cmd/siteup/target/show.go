package targetcmd

import (
	"fmt"
	"strings"

	"siteup/cmd/siteup/ui"
	"siteup/config"

	"github.com/spf13/cobra"
)

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [name]",
		Short: "Show a target's configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			var (
				name string
				t    config.Target
			)
			if len(args) == 1 {
				name = args[0]
				var ok bool
				t, ok = cfg.Targets[name]
				if !ok {
					return fmt.Errorf("target %q not found", name)
				}
			} else {
				var ok bool
				name, t, ok = cfg.Current()
				if !ok {
					return fmt.Errorf("no target given and no current target set; run \"siteup target use <name>\"")
				}
			}

			fmt.Println(ui.Bold(name))
			fmt.Print(ui.KeyValues("  ",
				ui.KV("project", t.ProjectDir),
				ui.KV("install", commandLine(t.Install)),
				ui.KV("build", commandLine(t.Build)),
				ui.KV("output", orDefault(t.OutputDir, "dist")),
				ui.KV("bucket", t.Bucket),
				ui.KV("region", orDefault(t.Region, ui.Muted("(sdk default)"))),
				ui.KV("stack", t.Stack),
				ui.KV("stack dir", t.StackDir),
			))
			return nil
		},
	}
}

func commandLine(argv []string) string {
	if len(argv) == 0 {
		return ui.Muted("(default)")
	}
	return strings.Join(argv, " ")
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
