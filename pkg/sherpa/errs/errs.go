// Package errs defines the error taxonomy shared across the Sherpa lab
// lifecycle engine, mirroring the sentinel-plus-typed-wrapper pattern of
// pkg/util/errors.go so every collaborator failure can be classified by
// the RPC layer (§7 of the lab lifecycle specification) without losing
// its context chain.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors, one per §7 taxonomy category. Wrapped errors use these
// as their Unwrap() target so callers can classify with errors.Is.
var (
	ErrValidation      = errors.New("manifest validation failed")
	ErrResourceConflict = errors.New("backend resource already exists")
	ErrBackend         = errors.New("backend operation failed")
	ErrArtifact        = errors.New("artifact generation failed")
	ErrAuth            = errors.New("caller not authorized for this lab")
	ErrTimeout         = errors.New("readiness deadline reached")
	ErrCatalog         = errors.New("catalog operation failed")
	ErrUnknownModel    = errors.New("unknown node model")
	ErrZtpNotSupported = errors.New("ztp method not supported for model")
	ErrNoSubnetAvailable = errors.New("no subnet available")
	ErrNotFound        = errors.New("resource not found")
)

// ValidationError accumulates one or more manifest-level problems.
// Surfaced to callers as InvalidParams per §7.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "validation failed: " + e.Errors[0]
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ValidationBuilder accumulates validation failures across a manifest walk.
type ValidationBuilder struct {
	errors []string
}

func (v *ValidationBuilder) Add(condition bool, message string) *ValidationBuilder {
	if !condition {
		v.errors = append(v.errors, message)
	}
	return v
}

func (v *ValidationBuilder) AddErrorf(format string, args ...interface{}) *ValidationBuilder {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
	return v
}

func (v *ValidationBuilder) HasErrors() bool { return len(v.errors) > 0 }

func (v *ValidationBuilder) Build() error {
	if len(v.errors) == 0 {
		return nil
	}
	return &ValidationError{Errors: v.errors}
}

// ZtpNotSupportedError names the (method, model) combination the Artifact
// Builder's dispatch table (§4.3) does not cover.
type ZtpNotSupportedError struct {
	Method string
	Model  string
}

func (e *ZtpNotSupportedError) Error() string {
	return fmt.Sprintf("ztp method %q not supported for model %q", e.Method, e.Model)
}

func (e *ZtpNotSupportedError) Unwrap() error { return ErrZtpNotSupported }

// BackendError wraps a failure from one of the three backend drivers
// (libvirt, Docker, host netlink), naming the resource and backend kind
// so the propagation chain (§7) survives into logs.
type BackendError struct {
	Backend  string // "libvirt", "docker", "netlink"
	Resource string
	Err      error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s backend: %s: %v", e.Backend, e.Resource, e.Err)
}

func (e *BackendError) Unwrap() error { return ErrBackend }

func NewBackendError(backend, resource string, err error) error {
	if err == nil {
		return nil
	}
	return &BackendError{Backend: backend, Resource: resource, Err: err}
}

// ArtifactError wraps a template-render or image-copy failure from the
// Artifact Builder, naming the node and artifact kind.
type ArtifactError struct {
	Node string
	Kind string
	Err  error
}

func (e *ArtifactError) Error() string {
	return fmt.Sprintf("artifact %s for node %s: %v", e.Kind, e.Node, e.Err)
}

func (e *ArtifactError) Unwrap() error { return ErrArtifact }

func NewArtifactError(node, kind string, err error) error {
	if err == nil {
		return nil
	}
	return &ArtifactError{Node: node, Kind: kind, Err: err}
}

// CatalogError wraps a persistence failure, treated like BackendError
// per §7 but named separately so operators can tell catalog outages
// from hypervisor/container-runtime outages at a glance.
type CatalogError struct {
	Op  string
	Err error
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("catalog %s: %v", e.Op, e.Err)
}

func (e *CatalogError) Unwrap() error { return ErrCatalog }

func NewCatalogError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &CatalogError{Op: op, Err: err}
}

// DestroyError records one resource the §4.8 sweep failed to remove.
// The sweep does not abort on these — it accumulates them.
type DestroyError struct {
	ResourceKind string
	Name         string
	Reason       error
}

func (e *DestroyError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.ResourceKind, e.Name, e.Reason)
}

func (e *DestroyError) Unwrap() error { return e.Reason }

// DestroyErrors is a list of per-resource failures accumulated during a
// destroy/clean sweep (§4.8). A non-empty list means success=false.
type DestroyErrors []*DestroyError

func (d DestroyErrors) Error() string {
	parts := make([]string, len(d))
	for i, e := range d {
		parts[i] = e.Error()
	}
	return fmt.Sprintf("destroy had %d errors:\n  - %s", len(d), strings.Join(parts, "\n  - "))
}
