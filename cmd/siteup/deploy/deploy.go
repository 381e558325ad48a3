// Package deploy implements the "siteup deploy" command.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"siteup"
	"siteup/cmd/siteup/ui"
	"siteup/config"
	"siteup/internal/adapter/localexec"
	"siteup/internal/adapter/pulumistack"
	s3adapter "siteup/internal/adapter/s3"
	"siteup/internal/adapter/sqlite"
	"siteup/pkg/sdk/defaults"
	"siteup/pkg/sdk/pipeline"
	"siteup/pkg/sdk/site"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/spf13/cobra"
)

func Cmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "deploy [target]",
		Short: "Build a site and deploy it to its hosting target",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return run(cmd.Context(), name, dryRun)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Build and list the upload manifest without deploying")
	return cmd
}

func run(ctx context.Context, name string, dryRun bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	name, ct, err := resolveTarget(cfg, name)
	if err != nil {
		return err
	}

	target := toSiteTarget(name, ct)

	sess, err := session.NewSession(&aws.Config{Region: aws.String(ct.Region)})
	if err != nil {
		return fmt.Errorf("create AWS session: %w", err)
	}

	out := ui.NewProgressOutput()
	defer out.Close()

	deployer := site.New(
		localexec.New(),
		s3adapter.New(sess, ct.Bucket),
		pulumistack.New(ct.StackDir, ct.Stack),
		site.WithTracker(pipeline.New(out.Reporter())),
	)

	if dryRun {
		items, err := deployer.Plan(ctx, target)
		out.Close()
		if err != nil {
			return err
		}

		rows := make([][]string, 0, len(items))
		for _, item := range items {
			rows = append(rows, []string{item.BlobName, item.ContentType})
		}
		fmt.Println(ui.Table([]string{"FILE", "CONTENT-TYPE"}, rows))
		fmt.Println(ui.InfoMsg("%d files would be uploaded to %s.", len(items), ui.Bold(ct.Bucket)))
		return nil
	}

	started := time.Now()
	outcome, err := deployer.Deploy(ctx, target)
	finished := time.Now()
	out.Close()

	recordHistory(ctx, name, outcome, err, started, finished)

	if err != nil {
		return err
	}
	fmt.Println(ui.SuccessMsg("Deployed %s to %s.", ui.Bold(name), ui.Accent(outcome.Endpoint)))
	return nil
}

func resolveTarget(cfg *config.Config, name string) (string, config.Target, error) {
	if name == "" {
		current, ct, ok := cfg.Current()
		if !ok {
			return "", config.Target{}, fmt.Errorf("no target given and no current target set; run \"siteup target use <name>\"")
		}
		return current, ct, nil
	}

	ct, ok := cfg.Targets[name]
	if !ok {
		return "", config.Target{}, fmt.Errorf("target %q not found; run \"siteup target add\"", name)
	}
	return name, ct, nil
}

// toSiteTarget maps the persisted target onto the deployer's input. The
// resource/output names default to the conventional stack layout.
func toSiteTarget(name string, ct config.Target) site.Target {
	t := site.Target{
		Name:            name,
		ProjectDir:      ct.ProjectDir,
		InstallCommand:  ct.Install,
		BuildCommand:    ct.Build,
		OutputDir:       ct.OutputDir,
		Container:       ct.Container,
		IndexDocument:   ct.IndexDocument,
		ErrorDocument:   ct.ErrorDocument,
		StorageResource: ct.StorageResource,
		StorageOutput:   ct.StorageOutput,
		SiteResource:    ct.SiteResource,
		SiteOutput:      ct.SiteOutput,
	}
	if t.StorageResource == "" {
		t.StorageResource = "storage"
	}
	if t.StorageOutput == "" {
		t.StorageOutput = "endpoint"
	}
	if t.SiteResource == "" {
		t.SiteResource = "cdn"
	}
	if t.SiteOutput == "" {
		t.SiteOutput = "endpoint"
	}
	return t
}

// recordHistory persists the run outcome. History is best-effort; a
// failure to record never fails the deployment.
func recordHistory(ctx context.Context, name string, outcome siteup.Outcome, deployErr error, started, finished time.Time) {
	store, err := sqlite.Open(defaults.HistoryDBPath())
	if err != nil {
		fmt.Fprintln(os.Stderr, ui.WarnMsg("Could not open history store: %v", err))
		return
	}
	defer store.Close()

	rec := siteup.HistoryRecord{
		Target:     name,
		Success:    outcome.Success,
		Endpoint:   outcome.Endpoint,
		StartedAt:  started,
		FinishedAt: finished,
	}
	var derr *site.DeployError
	if errors.As(deployErr, &derr) {
		rec.Failure = derr.Message
		rec.Phase = derr.Phase.String()
	} else if deployErr != nil {
		rec.Failure = deployErr.Error()
	}

	if err := store.Record(ctx, rec); err != nil {
		fmt.Fprintln(os.Stderr, ui.WarnMsg("Could not record deployment history: %v", err))
	}
}
