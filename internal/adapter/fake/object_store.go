package fake

import (
	"context"
	"sort"
	"sync"
	"time"

	"siteup/pkg/sdk/site"
)

// Upload is one recorded upload call.
type Upload struct {
	Container   string
	BlobName    string
	Path        string
	ContentType string
}

// ObjectStore is an in-memory site.ObjectStore with per-blob fault
// injection and optional artificial upload latency.
type ObjectStore struct {
	CallRecorder

	// UploadDelay is slept (cancellably) inside every Upload call. Tests
	// use it to assert that fan-out is concurrent, not sequential.
	UploadDelay time.Duration

	mu         sync.Mutex
	props      site.ServiceProperties
	setProps   []site.ServiceProperties
	containers map[string]bool
	uploads    []Upload
	uploadErrs map[string]error

	propsErr     error
	setPropsErr  error
	containerErr error
}

func NewObjectStore() *ObjectStore {
	return &ObjectStore{
		containers: make(map[string]bool),
		uploadErrs: make(map[string]error),
	}
}

// SeedProperties sets the properties returned by ServiceProperties.
func (s *ObjectStore) SeedProperties(props site.ServiceProperties) {
	s.mu.Lock()
	s.props = props
	s.mu.Unlock()
}

// FailProperties makes ServiceProperties return err.
func (s *ObjectStore) FailProperties(err error) {
	s.mu.Lock()
	s.propsErr = err
	s.mu.Unlock()
}

// FailSetProperties makes SetServiceProperties return err.
func (s *ObjectStore) FailSetProperties(err error) {
	s.mu.Lock()
	s.setPropsErr = err
	s.mu.Unlock()
}

// FailContainer makes EnsureContainer return err.
func (s *ObjectStore) FailContainer(err error) {
	s.mu.Lock()
	s.containerErr = err
	s.mu.Unlock()
}

// FailUpload makes the upload of blobName return err.
func (s *ObjectStore) FailUpload(blobName string, err error) {
	s.mu.Lock()
	s.uploadErrs[blobName] = err
	s.mu.Unlock()
}

func (s *ObjectStore) ServiceProperties(ctx context.Context) (site.ServiceProperties, error) {
	s.record("ServiceProperties")
	if err := ctx.Err(); err != nil {
		return site.ServiceProperties{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.propsErr != nil {
		return site.ServiceProperties{}, s.propsErr
	}
	return s.props, nil
}

func (s *ObjectStore) SetServiceProperties(ctx context.Context, props site.ServiceProperties) error {
	s.record("SetServiceProperties", props)
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setPropsErr != nil {
		return s.setPropsErr
	}
	s.props = props
	s.setProps = append(s.setProps, props)
	return nil
}

func (s *ObjectStore) EnsureContainer(ctx context.Context, name string) error {
	s.record("EnsureContainer", name)
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.containerErr != nil {
		return s.containerErr
	}
	s.containers[name] = true
	return nil
}

func (s *ObjectStore) Upload(ctx context.Context, container, blobName, filePath, contentType string) error {
	s.record("Upload", container, blobName, filePath, contentType)

	// Scripted failures fail fast, before the artificial latency, so
	// they hit while slower sibling uploads are still in flight.
	s.mu.Lock()
	scriptedErr, failed := s.uploadErrs[blobName]
	s.mu.Unlock()
	if failed {
		return scriptedErr
	}

	if s.UploadDelay > 0 {
		select {
		case <-time.After(s.UploadDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads = append(s.uploads, Upload{
		Container:   container,
		BlobName:    blobName,
		Path:        filePath,
		ContentType: contentType,
	})
	return nil
}

// Uploads returns completed uploads sorted by blob name.
func (s *ObjectStore) Uploads() []Upload {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Upload, len(s.uploads))
	copy(out, s.uploads)
	sort.Slice(out, func(i, j int) bool { return out[i].BlobName < out[j].BlobName })
	return out
}

// HasContainer reports whether EnsureContainer saw name.
func (s *ObjectStore) HasContainer(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.containers[name]
}

// LastSetProperties returns the most recent write, if any.
func (s *ObjectStore) LastSetProperties() (site.ServiceProperties, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.setProps) == 0 {
		return site.ServiceProperties{}, false
	}
	return s.setProps[len(s.setProps)-1], true
}
