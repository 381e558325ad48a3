// Package site drives the four-phase static-site deployment pipeline:
// build, configure remote hosting, upload artifacts, resolve the public
// endpoint. Phases run strictly in order and the pipeline stops at the
// first failure; uploads within the upload phase fan out concurrently.
package site

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"siteup"
	"siteup/internal/check"
	"siteup/pkg/sdk/defaults"
	"siteup/pkg/sdk/pipeline"
	"siteup/pkg/sdk/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Target describes one deployment target.
type Target struct {
	Name       string
	ProjectDir string

	// InstallCommand and BuildCommand run in ProjectDir, in that order.
	InstallCommand []string
	BuildCommand   []string

	// OutputDir is the build output subdirectory, relative to ProjectDir.
	OutputDir string

	Container     string
	IndexDocument string
	ErrorDocument string

	// StorageResource/StorageOutput name the provisioned storage
	// resource and the output key holding its endpoint. Resolution
	// gates the configure phase: it fails until provisioning finished.
	StorageResource string
	StorageOutput   string

	// SiteResource/SiteOutput name the routing/edge resource whose
	// output is the public endpoint reported on success.
	SiteResource string
	SiteOutput   string
}

func (t Target) withDefaults() Target {
	if len(t.InstallCommand) == 0 {
		t.InstallCommand = []string{"npm", "install"}
	}
	if len(t.BuildCommand) == 0 {
		t.BuildCommand = []string{"npm", "run", "build"}
	}
	if t.OutputDir == "" {
		t.OutputDir = defaults.OutputDir
	}
	if t.Container == "" {
		t.Container = defaults.Container
	}
	if t.IndexDocument == "" {
		t.IndexDocument = defaults.IndexDocument
	}
	if t.ErrorDocument == "" {
		t.ErrorDocument = defaults.ErrorDocument
	}
	return t
}

// UploadItem is one file scheduled for upload.
type UploadItem struct {
	BlobName    string
	Path        string
	ContentType string
}

// Deployer runs the deployment pipeline against a set of collaborators.
// One deployment per target at a time: the remote container and service
// properties are last-write-wins, concurrent runs against the same target
// are unsafe and must be prevented by the caller.
type Deployer struct {
	runner  CommandRunner
	store   ObjectStore
	outputs OutputResolver
	tracker *pipeline.Tracker
	tracer  trace.Tracer
}

// Option configures a Deployer.
type Option func(*Deployer)

// WithTracker installs the pipeline tracker progress is reported through.
func WithTracker(tr *pipeline.Tracker) Option {
	return func(d *Deployer) {
		if tr != nil {
			d.tracker = tr
		}
	}
}

// WithTracer overrides the OpenTelemetry tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(d *Deployer) {
		if tracer != nil {
			d.tracer = tracer
		}
	}
}

// New creates a Deployer. All three collaborators are required.
func New(runner CommandRunner, store ObjectStore, outputs OutputResolver, opts ...Option) *Deployer {
	check.Assert(runner != nil, "site.New: command runner must not be nil")
	check.Assert(store != nil, "site.New: object store must not be nil")
	check.Assert(outputs != nil, "site.New: output resolver must not be nil")

	d := &Deployer{
		runner:  runner,
		store:   store,
		outputs: outputs,
		tracker: pipeline.New(nil),
		tracer:  otel.Tracer("siteup/sdk/site"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Deploy runs the full pipeline for one target. The returned Outcome
// carries the public endpoint on success. On failure the top-level step is
// always marked Failed before the error is returned; reporting and
// propagation are both required, never one or the other.
func (d *Deployer) Deploy(ctx context.Context, t Target) (siteup.Outcome, error) {
	t = t.withDefaults()
	if err := t.validate(); err != nil {
		return siteup.Outcome{Err: err}, err
	}

	op, err := telemetry.EmitPlan(ctx, d.tracer, "site.deploy", telemetry.Plan{Steps: []telemetry.PlannedStep{
		{ID: "build", Title: "building site"},
		{ID: "configure", Title: "configuring static website"},
		{ID: "upload", Title: "uploading artifacts"},
		{ID: "finalize", Title: "resolving endpoint"},
	}})
	if err != nil {
		return siteup.Outcome{Err: err}, err
	}

	step := d.tracker.Step("deploy " + t.Name)
	defer step.Close()

	endpoint, runErr := d.run(op.Context(), op, step, t)
	op.End(runErr)
	if runErr != nil {
		step.Fail(runErr.Error())
		return siteup.Outcome{Err: runErr}, runErr
	}

	step.Complete("deployed to " + endpoint)
	return siteup.Outcome{Success: true, Endpoint: endpoint}, nil
}

// Plan runs the build phase and returns the upload manifest without
// touching any remote collaborator.
func (d *Deployer) Plan(ctx context.Context, t Target) ([]UploadItem, error) {
	t = t.withDefaults()
	if t.ProjectDir == "" {
		return nil, fmt.Errorf("plan: project directory is required")
	}

	step := d.tracker.Step("plan " + t.Name)
	defer step.Close()

	if err := d.buildPhase(ctx, step, t); err != nil {
		step.Fail(err.Error())
		return nil, err
	}

	outDir := filepath.Join(t.ProjectDir, t.OutputDir)
	items, err := collectUploads(outDir)
	if err != nil {
		derr := uploadEnumerationError(t, err, outDir)
		step.Fail(derr.Error())
		return nil, derr
	}

	step.Complete(fmt.Sprintf("%d files to upload", len(items)))
	return items, nil
}

func (t Target) validate() error {
	if t.ProjectDir == "" {
		return fmt.Errorf("deploy %q: project directory is required", t.Name)
	}
	if t.StorageResource == "" || t.StorageOutput == "" {
		return fmt.Errorf("deploy %q: storage resource and output key are required", t.Name)
	}
	if t.SiteResource == "" || t.SiteOutput == "" {
		return fmt.Errorf("deploy %q: site resource and output key are required", t.Name)
	}
	return nil
}

// run executes the phases in their fixed order. Later phases never run
// once an earlier one failed.
func (d *Deployer) run(ctx context.Context, op *telemetry.Operation, step *pipeline.StepHandle, t Target) (string, error) {
	phase := PhaseBuild
	if err := op.RunStep(ctx, "build", func(ctx context.Context) error {
		return d.buildPhase(ctx, step, t)
	}); err != nil {
		return "", err
	}

	phase = phase.Transition(PhaseConfigure)
	if err := op.RunStep(ctx, "configure", func(ctx context.Context) error {
		return d.configurePhase(ctx, step, t)
	}); err != nil {
		return "", err
	}

	phase = phase.Transition(PhaseUpload)
	if err := op.RunStep(ctx, "upload", func(ctx context.Context) error {
		return d.uploadPhase(ctx, step, t)
	}); err != nil {
		return "", err
	}

	phase = phase.Transition(PhaseFinalize)
	var endpoint string
	if err := op.RunStep(ctx, "finalize", func(ctx context.Context) error {
		var err error
		endpoint, err = d.finalizePhase(ctx, step, t)
		return err
	}); err != nil {
		return "", err
	}
	return endpoint, nil
}

// buildPhase resolves the project directory and runs the install and
// build commands in sequence, failing on the first non-zero exit.
func (d *Deployer) buildPhase(ctx context.Context, step *pipeline.StepHandle, t Target) error {
	task := step.Task("build")
	defer task.Close()

	if _, err := os.Stat(t.ProjectDir); err != nil {
		derr := failf(t.Name, PhaseBuild, KindNotFound, err, "site project directory %s not found", t.ProjectDir)
		task.Fail(derr.Message)
		return derr
	}

	for _, argv := range [][]string{t.InstallCommand, t.BuildCommand} {
		name := strings.Join(argv, " ")
		res, err := d.runner.Run(ctx, argv[0], argv[1:], t.ProjectDir)
		if err != nil {
			derr := failf(t.Name, PhaseBuild, KindExternalProcess, err, "%s: %v", name, err)
			task.Fail(derr.Message)
			return derr
		}
		if res.ExitCode != 0 {
			derr := failf(t.Name, PhaseBuild, KindExternalProcess, nil,
				"%s: exit code %d: %s", name, res.ExitCode, strings.TrimSpace(res.Stderr))
			task.Fail(derr.Message)
			return derr
		}
		slog.Debug("Command succeeded.", "command", name, "dir", t.ProjectDir)
	}

	task.Complete("built " + t.Name)
	return nil
}

// configurePhase waits for the storage endpoint to resolve, then enables
// static-website hosting with a read-modify-write of the service
// properties. A blind overwrite would clobber unrelated settings, so only
// the static-website sub-property is touched.
func (d *Deployer) configurePhase(ctx context.Context, step *pipeline.StepHandle, t Target) error {
	task := step.Task("configure")
	defer task.Close()

	endpoint, err := d.outputs.OutputValue(ctx, t.StorageResource, t.StorageOutput)
	if err != nil {
		derr := failf(t.Name, PhaseConfigure, KindDependencyUnresolved, err,
			"storage endpoint of %s not available: %v", t.StorageResource, err)
		task.Fail(derr.Message)
		return derr
	}
	if strings.TrimSpace(endpoint) == "" {
		derr := failf(t.Name, PhaseConfigure, KindDependencyUnresolved, nil,
			"storage endpoint of %s is empty", t.StorageResource)
		task.Fail(derr.Message)
		return derr
	}
	slog.Debug("Resolved storage endpoint.", "endpoint", endpoint)

	props, err := d.store.ServiceProperties(ctx)
	if err != nil {
		derr := failf(t.Name, PhaseConfigure, KindRemoteOperation, err, "get service properties: %v", err)
		task.Fail(derr.Message)
		return derr
	}

	props.StaticWebsite = StaticWebsite{
		Enabled:       true,
		IndexDocument: t.IndexDocument,
		ErrorDocument: t.ErrorDocument,
	}

	if err := d.store.SetServiceProperties(ctx, props); err != nil {
		derr := failf(t.Name, PhaseConfigure, KindRemoteOperation, err, "set service properties: %v", err)
		task.Fail(derr.Message)
		return derr
	}

	task.Complete("static website enabled")
	return nil
}

// uploadPhase ensures the container exists, then uploads every file under
// the build output directory concurrently and joins on all of them. A
// failed upload does not cancel its in-flight siblings; every started
// upload runs to completion and the join surfaces the first error. A
// failed phase may leave a partially uploaded container; nothing is
// rolled back.
func (d *Deployer) uploadPhase(ctx context.Context, step *pipeline.StepHandle, t Target) error {
	task := step.Task("upload")
	defer task.Close()

	if err := d.store.EnsureContainer(ctx, t.Container); err != nil {
		derr := failf(t.Name, PhaseUpload, KindRemoteOperation, err, "ensure container %s: %v", t.Container, err)
		task.Fail(derr.Message)
		return derr
	}

	outDir := filepath.Join(t.ProjectDir, t.OutputDir)
	items, err := collectUploads(outDir)
	if err != nil {
		derr := uploadEnumerationError(t, err, outDir)
		task.Fail(derr.Message)
		return derr
	}

	var g errgroup.Group
	for _, item := range items {
		sub := task.Sub(item.BlobName)
		g.Go(func() error {
			if err := d.store.Upload(ctx, t.Container, item.BlobName, item.Path, item.ContentType); err != nil {
				sub.Fail(err.Error())
				return fmt.Errorf("upload %s: %w", item.BlobName, err)
			}
			sub.Complete("uploaded")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		derr := failf(t.Name, PhaseUpload, KindAggregateUpload, err, "%v", err)
		task.Fail(derr.Message)
		return derr
	}

	task.Complete(fmt.Sprintf("uploaded %d files", len(items)))
	return nil
}

// finalizePhase resolves the public endpoint of the routing resource.
func (d *Deployer) finalizePhase(ctx context.Context, step *pipeline.StepHandle, t Target) (string, error) {
	task := step.Task("finalize")
	defer task.Close()

	endpoint, err := d.outputs.OutputValue(ctx, t.SiteResource, t.SiteOutput)
	if err != nil {
		derr := failf(t.Name, PhaseFinalize, KindDependencyUnresolved, err,
			"endpoint of %s not available: %v", t.SiteResource, err)
		task.Fail(derr.Message)
		return "", derr
	}
	if strings.TrimSpace(endpoint) == "" {
		derr := failf(t.Name, PhaseFinalize, KindDependencyUnresolved, nil,
			"endpoint of %s is empty", t.SiteResource)
		task.Fail(derr.Message)
		return "", derr
	}

	task.Complete(endpoint)
	return endpoint, nil
}

func uploadEnumerationError(t Target, err error, outDir string) *DeployError {
	if os.IsNotExist(err) {
		return failf(t.Name, PhaseUpload, KindNotFound, err, "build output directory %s not found", outDir)
	}
	return failf(t.Name, PhaseUpload, KindNotFound, err, "enumerate build output %s: %v", outDir, err)
}

// collectUploads enumerates all files under outDir, sorted by blob name.
func collectUploads(outDir string) ([]UploadItem, error) {
	if _, err := os.Stat(outDir); err != nil {
		return nil, err
	}

	var items []UploadItem
	err := filepath.WalkDir(outDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(outDir, path)
		if err != nil {
			return err
		}
		items = append(items, UploadItem{
			BlobName:    BlobName(rel),
			Path:        path,
			ContentType: ContentType(filepath.Ext(path)),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(items, func(i, j int) bool { return items[i].BlobName < items[j].BlobName })
	return items, nil
}
