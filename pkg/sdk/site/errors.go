package site

import "fmt"

// FailureKind classifies why a deployment phase failed.
type FailureKind uint8

const (
	// KindNotFound: a required local directory (site source, build
	// output) is missing.
	KindNotFound FailureKind = iota + 1

	// KindExternalProcess: the install or build command exited non-zero
	// or could not be started.
	KindExternalProcess

	// KindDependencyUnresolved: a required remote resource output is
	// absent or empty.
	KindDependencyUnresolved

	// KindRemoteOperation: a storage or service-property call failed.
	KindRemoteOperation

	// KindAggregateUpload: one or more concurrent uploads failed.
	KindAggregateUpload
)

func (k FailureKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindExternalProcess:
		return "external_process"
	case KindDependencyUnresolved:
		return "dependency_unresolved"
	case KindRemoteOperation:
		return "remote_operation"
	case KindAggregateUpload:
		return "aggregate_upload"
	default:
		return "unknown"
	}
}

// DeployError carries structured context for deployment failures.
type DeployError struct {
	Target  string
	Phase   Phase
	Kind    FailureKind
	Message string
	Err     error // underlying cause, may be nil
}

func (e *DeployError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("deploy %q failed at %s (%s): %s", e.Target, e.Phase, e.Kind, e.Message)
}

func (e *DeployError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func failf(target string, phase Phase, kind FailureKind, err error, format string, args ...any) *DeployError {
	return &DeployError{
		Target:  target,
		Phase:   phase,
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}
