package targetcmd

import (
	"fmt"

	"siteup/cmd/siteup/ui"
	"siteup/config"

	"github.com/spf13/cobra"
)

func addCmd() *cobra.Command {
	var t config.Target

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add or update a deployment target",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			name := args[0]

			if t.ProjectDir == "" {
				return fmt.Errorf("--project-dir is required")
			}
			if t.Bucket == "" {
				return fmt.Errorf("--bucket is required")
			}
			if t.StackDir == "" || t.Stack == "" {
				return fmt.Errorf("--stack-dir and --stack are required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			cfg.Set(name, t)
			if cfg.CurrentTarget == "" {
				cfg.CurrentTarget = name
			}

			if err := cfg.Save(); err != nil {
				return err
			}

			fmt.Println(ui.SuccessMsg("Target %s saved.", ui.Bold(name)))
			return nil
		},
	}

	cmd.Flags().StringVar(&t.ProjectDir, "project-dir", "", "Site project directory")
	cmd.Flags().StringVar(&t.OutputDir, "output-dir", "", "Build output directory relative to the project (default dist)")
	cmd.Flags().StringVar(&t.Bucket, "bucket", "", "S3 bucket the site is uploaded to")
	cmd.Flags().StringVar(&t.Region, "region", "", "AWS region of the bucket")
	cmd.Flags().StringVar(&t.StackDir, "stack-dir", "", "Pulumi project directory holding the hosting stack")
	cmd.Flags().StringVar(&t.Stack, "stack", "", "Pulumi stack name")
	cmd.Flags().StringVar(&t.IndexDocument, "index-document", "", "Index document (default index.html)")
	cmd.Flags().StringVar(&t.ErrorDocument, "error-document", "", "Error document (default index.html)")
	return cmd
}
