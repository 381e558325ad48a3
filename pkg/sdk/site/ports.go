package site

import "context"

// CommandRunner runs an external command and reports its exit code and
// captured standard error. Run returns a non-nil error only when the
// command could not be started or the context was cancelled; a non-zero
// exit is reported through RunResult.
type CommandRunner interface {
	Run(ctx context.Context, name string, args []string, dir string) (RunResult, error)
}

// RunResult is the observed outcome of one command invocation.
type RunResult struct {
	ExitCode int
	Stderr   string
}

// ObjectStore abstracts the storage service the site is uploaded to.
// All calls are network operations and honor context cancellation.
type ObjectStore interface {
	// ServiceProperties fetches the current service-level properties.
	ServiceProperties(ctx context.Context) (ServiceProperties, error)

	// SetServiceProperties writes properties back. Callers are expected
	// to read-modify-write: fetch, change only what they own, write.
	SetServiceProperties(ctx context.Context, props ServiceProperties) error

	// EnsureContainer creates the named container if it does not exist.
	// Idempotent.
	EnsureContainer(ctx context.Context, name string) error

	// Upload stores the file at filePath under blobName in the container
	// with the given content type.
	Upload(ctx context.Context, container, blobName, filePath, contentType string) error
}

// OutputResolver resolves named output values of externally provisioned
// resources. Resolution blocks until the resource has finished
// provisioning and fails if the resource or output does not exist.
type OutputResolver interface {
	OutputValue(ctx context.Context, resource, key string) (string, error)
}

// ServiceProperties is the service-level configuration of an ObjectStore.
// The deployer mutates only StaticWebsite; everything else must round-trip
// through SetServiceProperties untouched.
type ServiceProperties struct {
	StaticWebsite StaticWebsite
	CORS          []CORSRule
	Retention     *RetentionPolicy
}

// StaticWebsite is the static-website sub-property of the service.
type StaticWebsite struct {
	Enabled       bool
	IndexDocument string
	ErrorDocument string
}

type CORSRule struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAgeSeconds  int
}

type RetentionPolicy struct {
	Enabled bool
	Days    int
}
