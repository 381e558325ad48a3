package site_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"siteup/internal/adapter/fake"
	"siteup/pkg/sdk/pipeline"
	"siteup/pkg/sdk/site"
)

type harness struct {
	runner   *fake.CommandRunner
	store    *fake.ObjectStore
	resolver *fake.OutputResolver
	deployer *site.Deployer
	tracker  *pipeline.Tracker
	lastSnap *pipeline.Snapshot
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		runner:   fake.NewCommandRunner(),
		store:    fake.NewObjectStore(),
		resolver: fake.NewOutputResolver(),
	}
	h.resolver.Set("storage", "endpoint", "https://storage.example.net")
	h.resolver.Set("cdn", "endpoint", "https://demo.example.net")

	h.lastSnap = &pipeline.Snapshot{}
	h.tracker = pipeline.New(func(s pipeline.Snapshot) { *h.lastSnap = s })
	h.deployer = site.New(h.runner, h.store, h.resolver, site.WithTracker(h.tracker))
	return h
}

// newProject creates a site project with index.html and assets/app.js in
// the build output directory.
func newProject(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "dist", "index.html"), "<html></html>")
	writeFile(t, filepath.Join(dir, "dist", "assets", "app.js"), "console.log(1)")
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func testTarget(dir string) site.Target {
	return site.Target{
		Name:            "demo",
		ProjectDir:      dir,
		InstallCommand:  []string{"npm", "install"},
		BuildCommand:    []string{"npm", "run", "build"},
		StorageResource: "storage",
		StorageOutput:   "endpoint",
		SiteResource:    "cdn",
		SiteOutput:      "endpoint",
	}
}

func TestDeploySucceedsEndToEnd(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	outcome, err := h.deployer.Deploy(context.Background(), testTarget(newProject(t)))
	if err != nil {
		t.Fatalf("Deploy() error = %v", err)
	}
	if !outcome.Success {
		t.Fatal("outcome.Success = false")
	}
	if got, want := outcome.Endpoint, "https://demo.example.net"; got != want {
		t.Fatalf("endpoint = %q, want %q", got, want)
	}

	if !h.store.HasContainer("$web") {
		t.Fatal("container $web was not created")
	}

	ups := h.store.Uploads()
	if got, want := len(ups), 2; got != want {
		t.Fatalf("uploads = %d, want %d", got, want)
	}
	if got, want := ups[0].BlobName, "assets/app.js"; got != want {
		t.Fatalf("blob name = %q, want %q", got, want)
	}
	if got, want := ups[0].ContentType, "application/javascript"; got != want {
		t.Fatalf("content type = %q, want %q", got, want)
	}
	if got, want := ups[1].BlobName, "index.html"; got != want {
		t.Fatalf("blob name = %q, want %q", got, want)
	}
	if got, want := ups[1].ContentType, "text/html"; got != want {
		t.Fatalf("content type = %q, want %q", got, want)
	}

	// Both install and build ran, in order, in the project directory.
	runs := h.runner.Calls("Run")
	if got, want := len(runs), 2; got != want {
		t.Fatalf("command runs = %d, want %d", got, want)
	}
	if got, want := runs[0].Args[0], "npm install"; got != want {
		t.Fatalf("first command = %v, want %q", runs[0].Args[0], want)
	}
	if got, want := runs[1].Args[0], "npm run build"; got != want {
		t.Fatalf("second command = %v, want %q", runs[1].Args[0], want)
	}

	// The final snapshot shows the step done with per-file sub entries.
	entries := h.lastSnap.Entries
	if len(entries) == 0 || entries[0].Status != pipeline.Done {
		t.Fatalf("final step status = %v, want done", entries)
	}
	subs := 0
	for _, e := range entries {
		if strings.Contains(e.ID, "upload/") {
			subs++
		}
	}
	if got, want := subs, 2; got != want {
		t.Fatalf("upload sub entries = %d, want %d", got, want)
	}
}

func TestDeployMissingProjectDirMakesNoRemoteCalls(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	target := testTarget(filepath.Join(t.TempDir(), "nope"))

	_, err := h.deployer.Deploy(context.Background(), target)
	if err == nil {
		t.Fatal("Deploy() error = nil, want failure")
	}

	var derr *site.DeployError
	if !errors.As(err, &derr) {
		t.Fatalf("error type = %T, want *site.DeployError", err)
	}
	if got, want := derr.Kind, site.KindNotFound; got != want {
		t.Fatalf("kind = %v, want %v", got, want)
	}
	if got, want := derr.Phase, site.PhaseBuild; got != want {
		t.Fatalf("phase = %v, want %v", got, want)
	}
	if !strings.Contains(derr.Message, target.ProjectDir) {
		t.Fatalf("message %q does not name the missing path", derr.Message)
	}

	if calls := h.store.Calls(""); len(calls) != 0 {
		t.Fatalf("storage calls = %v, want none", calls)
	}
	if calls := h.resolver.Calls(""); len(calls) != 0 {
		t.Fatalf("resolver calls = %v, want none", calls)
	}
}

func TestDeployBuildFailureHaltsBeforeConfigure(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.runner.Stub("npm run build", site.RunResult{ExitCode: 1, Stderr: "syntax error"})

	_, err := h.deployer.Deploy(context.Background(), testTarget(newProject(t)))
	if err == nil {
		t.Fatal("Deploy() error = nil, want failure")
	}

	var derr *site.DeployError
	if !errors.As(err, &derr) {
		t.Fatalf("error type = %T, want *site.DeployError", err)
	}
	if got, want := derr.Kind, site.KindExternalProcess; got != want {
		t.Fatalf("kind = %v, want %v", got, want)
	}
	if !strings.Contains(derr.Message, "exit code 1") {
		t.Fatalf("message %q does not contain exit code", derr.Message)
	}
	if !strings.Contains(derr.Message, "syntax error") {
		t.Fatalf("message %q does not contain stderr", derr.Message)
	}

	if calls := h.store.Calls(""); len(calls) != 0 {
		t.Fatalf("storage calls after build failure = %v, want none", calls)
	}
}

func TestDeploySpawnFailureIsExternalProcess(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	spawnErr := errors.New(`exec: "npm": executable file not found in $PATH`)
	h.runner.StubError("npm install", spawnErr)

	_, err := h.deployer.Deploy(context.Background(), testTarget(newProject(t)))
	var derr *site.DeployError
	if !errors.As(err, &derr) {
		t.Fatalf("error = %v, want *site.DeployError", err)
	}
	if got, want := derr.Kind, site.KindExternalProcess; got != want {
		t.Fatalf("kind = %v, want %v", got, want)
	}
	if !errors.Is(err, spawnErr) {
		t.Fatalf("error %v does not wrap the spawn failure", err)
	}
}

func TestDeployUnresolvedStorageEndpointHaltsBeforeUpload(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	target := testTarget(newProject(t))
	target.StorageResource = "never-provisioned"

	_, err := h.deployer.Deploy(context.Background(), target)
	var derr *site.DeployError
	if !errors.As(err, &derr) {
		t.Fatalf("error = %v, want *site.DeployError", err)
	}
	if got, want := derr.Kind, site.KindDependencyUnresolved; got != want {
		t.Fatalf("kind = %v, want %v", got, want)
	}
	if got, want := derr.Phase, site.PhaseConfigure; got != want {
		t.Fatalf("phase = %v, want %v", got, want)
	}

	if calls := h.store.Calls("EnsureContainer"); len(calls) != 0 {
		t.Fatal("EnsureContainer called after configure failure")
	}
	if calls := h.store.Calls("Upload"); len(calls) != 0 {
		t.Fatal("Upload called after configure failure")
	}
}

func TestDeployEmptyStorageEndpointFails(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.resolver.Set("storage", "endpoint", "  ")

	_, err := h.deployer.Deploy(context.Background(), testTarget(newProject(t)))
	var derr *site.DeployError
	if !errors.As(err, &derr) {
		t.Fatalf("error = %v, want *site.DeployError", err)
	}
	if got, want := derr.Kind, site.KindDependencyUnresolved; got != want {
		t.Fatalf("kind = %v, want %v", got, want)
	}
}

func TestConfigurePreservesUnrelatedProperties(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	seed := site.ServiceProperties{
		StaticWebsite: site.StaticWebsite{Enabled: false},
		CORS: []site.CORSRule{
			{AllowedOrigins: []string{"https://app.example.com"}, AllowedMethods: []string{"GET", "HEAD"}, MaxAgeSeconds: 300},
		},
		Retention: &site.RetentionPolicy{Enabled: true, Days: 7},
	}
	h.store.SeedProperties(seed)

	if _, err := h.deployer.Deploy(context.Background(), testTarget(newProject(t))); err != nil {
		t.Fatalf("Deploy() error = %v", err)
	}

	written, ok := h.store.LastSetProperties()
	if !ok {
		t.Fatal("service properties were never written")
	}

	want := site.StaticWebsite{Enabled: true, IndexDocument: "index.html", ErrorDocument: "index.html"}
	if written.StaticWebsite != want {
		t.Fatalf("static website = %+v, want %+v", written.StaticWebsite, want)
	}
	if !reflect.DeepEqual(written.CORS, seed.CORS) {
		t.Fatalf("CORS changed: %+v, want %+v", written.CORS, seed.CORS)
	}
	if !reflect.DeepEqual(written.Retention, seed.Retention) {
		t.Fatalf("retention changed: %+v, want %+v", written.Retention, seed.Retention)
	}
}

func TestConfigureRemoteFailureIsRemoteOperation(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.store.FailProperties(errors.New("503 service unavailable"))

	_, err := h.deployer.Deploy(context.Background(), testTarget(newProject(t)))
	var derr *site.DeployError
	if !errors.As(err, &derr) {
		t.Fatalf("error = %v, want *site.DeployError", err)
	}
	if got, want := derr.Kind, site.KindRemoteOperation; got != want {
		t.Fatalf("kind = %v, want %v", got, want)
	}
	if calls := h.store.Calls("Upload"); len(calls) != 0 {
		t.Fatal("Upload called after configure failure")
	}
}

func TestEnsureContainerFailureHaltsUploads(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.store.FailContainer(errors.New("access denied"))

	_, err := h.deployer.Deploy(context.Background(), testTarget(newProject(t)))
	var derr *site.DeployError
	if !errors.As(err, &derr) {
		t.Fatalf("error = %v, want *site.DeployError", err)
	}
	if got, want := derr.Kind, site.KindRemoteOperation; got != want {
		t.Fatalf("kind = %v, want %v", got, want)
	}
	if calls := h.store.Calls("Upload"); len(calls) != 0 {
		t.Fatal("Upload called after container failure")
	}
}

func TestDeployMissingOutputDirFailsWithNotFound(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	dir := t.TempDir() // project exists but has no dist/

	_, err := h.deployer.Deploy(context.Background(), testTarget(dir))
	var derr *site.DeployError
	if !errors.As(err, &derr) {
		t.Fatalf("error = %v, want *site.DeployError", err)
	}
	if got, want := derr.Kind, site.KindNotFound; got != want {
		t.Fatalf("kind = %v, want %v", got, want)
	}
	if got, want := derr.Phase, site.PhaseUpload; got != want {
		t.Fatalf("phase = %v, want %v", got, want)
	}

	// The container is ensured before the output directory is walked, so
	// the remote side saw exactly that one call.
	if calls := h.store.Calls("EnsureContainer"); len(calls) != 1 {
		t.Fatalf("EnsureContainer calls = %d, want 1", len(calls))
	}
}

func TestUploadsRunConcurrently(t *testing.T) {
	t.Parallel()

	const perUploadDelay = 100 * time.Millisecond
	const fileCount = 8

	h := newHarness(t)
	h.store.UploadDelay = perUploadDelay

	dir := t.TempDir()
	for i := 0; i < fileCount; i++ {
		writeFile(t, filepath.Join(dir, "dist", "f"+string(rune('a'+i))+".txt"), "x")
	}

	start := time.Now()
	if _, err := h.deployer.Deploy(context.Background(), testTarget(dir)); err != nil {
		t.Fatalf("Deploy() error = %v", err)
	}
	elapsed := time.Since(start)

	// Sequential uploads would take fileCount*delay; concurrent fan-out
	// takes roughly one delay. Allow generous scheduling slack.
	if elapsed >= fileCount*perUploadDelay/2 {
		t.Fatalf("uploads took %v, want concurrent (~%v)", elapsed, perUploadDelay)
	}
	if got, want := len(h.store.Uploads()), fileCount; got != want {
		t.Fatalf("uploads = %d, want %d", got, want)
	}
}

func TestUploadFailureFailsPhaseAndSkipsFinalize(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.store.FailUpload("assets/app.js", errors.New("connection reset"))

	_, err := h.deployer.Deploy(context.Background(), testTarget(newProject(t)))
	var derr *site.DeployError
	if !errors.As(err, &derr) {
		t.Fatalf("error = %v, want *site.DeployError", err)
	}
	if got, want := derr.Kind, site.KindAggregateUpload; got != want {
		t.Fatalf("kind = %v, want %v", got, want)
	}
	if !strings.Contains(err.Error(), "assets/app.js") {
		t.Fatalf("error %q does not name the failed blob", err)
	}

	// Finalize never ran: only the storage endpoint was resolved.
	if got, want := len(h.resolver.Calls("OutputValue")), 1; got != want {
		t.Fatalf("resolver calls = %d, want %d", got, want)
	}
}

func TestUploadFailureDoesNotCancelSiblings(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.store.FailUpload("assets/app.js", errors.New("connection reset"))
	h.store.UploadDelay = 80 * time.Millisecond

	// assets/app.js fails immediately while index.html is still in
	// flight. The slow sibling must run to completion, not be torn down.
	_, err := h.deployer.Deploy(context.Background(), testTarget(newProject(t)))
	var derr *site.DeployError
	if !errors.As(err, &derr) {
		t.Fatalf("error = %v, want *site.DeployError", err)
	}
	if got, want := derr.Kind, site.KindAggregateUpload; got != want {
		t.Fatalf("kind = %v, want %v", got, want)
	}
	if errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, sibling was canceled", err)
	}

	ups := h.store.Uploads()
	if got, want := len(ups), 1; got != want {
		t.Fatalf("completed uploads = %d, want %d", got, want)
	}
	if got, want := ups[0].BlobName, "index.html"; got != want {
		t.Fatalf("completed upload = %q, want %q", got, want)
	}

	var taskStatus, siblingStatus pipeline.Status
	for _, e := range h.lastSnap.Entries {
		switch {
		case strings.HasSuffix(e.ID, "/upload"):
			taskStatus = e.Status
		case strings.HasSuffix(e.ID, "/upload/index.html"):
			siblingStatus = e.Status
		}
	}
	if got, want := taskStatus, pipeline.Failed; got != want {
		t.Fatalf("upload task status = %q, want %q", got, want)
	}
	if got, want := siblingStatus, pipeline.Done; got != want {
		t.Fatalf("sibling upload status = %q, want %q", got, want)
	}
}

func TestDeployCancellationMarksFailureAndSkipsFinalize(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.store.UploadDelay = 200 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := h.deployer.Deploy(ctx, testTarget(newProject(t)))
	if err == nil {
		t.Fatal("Deploy() error = nil, want cancellation")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}

	if got, want := len(h.resolver.Calls("OutputValue")), 1; got != want {
		t.Fatalf("resolver calls = %d, want %d", got, want)
	}
	if len(h.lastSnap.Entries) == 0 || h.lastSnap.Entries[0].Status != pipeline.Failed {
		t.Fatal("top-level step not marked failed after cancellation")
	}
}

func TestPlanReturnsManifestWithoutRemoteCalls(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	items, err := h.deployer.Plan(context.Background(), testTarget(newProject(t)))
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}

	if got, want := len(items), 2; got != want {
		t.Fatalf("manifest size = %d, want %d", got, want)
	}
	if got, want := items[0].BlobName, "assets/app.js"; got != want {
		t.Fatalf("manifest[0] = %q, want %q", got, want)
	}
	if got, want := items[1].ContentType, "text/html"; got != want {
		t.Fatalf("manifest[1] content type = %q, want %q", got, want)
	}

	if calls := h.store.Calls(""); len(calls) != 0 {
		t.Fatalf("storage calls during plan = %v, want none", calls)
	}
	if calls := h.resolver.Calls(""); len(calls) != 0 {
		t.Fatalf("resolver calls during plan = %v, want none", calls)
	}
}

func TestDeployErrorFormatting(t *testing.T) {
	t.Parallel()

	err := &site.DeployError{
		Target:  "demo",
		Phase:   site.PhaseUpload,
		Kind:    site.KindAggregateUpload,
		Message: "upload assets/app.js: connection reset",
	}
	want := `deploy "demo" failed at upload (aggregate_upload): upload assets/app.js: connection reset`
	if got := err.Error(); got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}
