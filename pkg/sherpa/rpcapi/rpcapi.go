// Package rpcapi defines the transport-agnostic JSON parameter/result
// shapes for the four lab lifecycle RPC methods (§6): `up`, `inspect`,
// `destroy`, `clean`. It has no opinion on the wire transport; a caller
// wires these into JSON-RPC, a WebSocket stream, or a CLI the same way.
package rpcapi

import (
	"context"
	"errors"

	"github.com/sherpa-labs/sherpa/pkg/sherpa/errs"
	"github.com/sherpa-labs/sherpa/pkg/sherpa/lifecycle"
	"github.com/sherpa-labs/sherpa/pkg/sherpa/manifest"
)

// ErrorCategory is the §6/§7 RPC error classification a transport maps
// onto its own status codes.
type ErrorCategory string

const (
	AuthRequired ErrorCategory = "AuthRequired"
	InvalidParams ErrorCategory = "InvalidParams"
	AccessDenied ErrorCategory = "AccessDenied"
	NotFound     ErrorCategory = "NotFound"
	ServerError  ErrorCategory = "ServerError"
)

// Error wraps a core error with the RPC category a transport reports.
type Error struct {
	Category ErrorCategory
	Err      error
}

func (e *Error) Error() string { return string(e.Category) + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Classify maps a core error to its §7 RPC category.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, errs.ErrValidation):
		return &Error{Category: InvalidParams, Err: err}
	case errors.Is(err, errs.ErrAuth):
		return &Error{Category: AccessDenied, Err: err}
	case errors.Is(err, errs.ErrNotFound):
		return &Error{Category: NotFound, Err: err}
	default:
		return &Error{Category: ServerError, Err: err}
	}
}

// UpParams is the `up` RPC parameter object: `{lab_id, manifest, token}`.
type UpParams struct {
	LabID    string            `json:"lab_id"`
	Manifest *manifest.Manifest `json:"manifest"`
	Token    string            `json:"token"`
}

// UpResponse is `up`'s final result once streaming progress completes.
type UpResponse struct {
	LabID      string                 `json:"lab_id"`
	State      string                 `json:"state"`
	MgmtNet    string                 `json:"mgmt_net"`
	Gateway    string                 `json:"gateway"`
	BootServer string                 `json:"boot_server"`
	Nodes      []lifecycle.NodeResult `json:"nodes"`
	Links      []lifecycle.LinkResult `json:"links"`
	Laggards   []string               `json:"laggards,omitempty"`
	Warning    string                 `json:"warning,omitempty"`
}

// InspectParams is the `inspect` RPC parameter object.
type InspectParams struct {
	LabID string `json:"lab_id"`
	Token string `json:"token"`
}

// DestroyParams is shared by `destroy` and `clean`; `clean` requires an
// admin token and ignores everything else.
type DestroyParams struct {
	LabID string `json:"lab_id"`
	Token string `json:"token"`
}

// DestroyResponse is `destroy`/`clean`'s result: `{summary, errors}`.
type DestroyResponse struct {
	Summary *lifecycle.DestroySummary `json:"summary"`
	Errors  []string                  `json:"errors,omitempty"`
}

// TokenAuthenticator resolves a bearer token to a caller identity and an
// admin flag; the out-of-scope transport supplies a concrete
// implementation (e.g. backed by a session store).
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, token string) (caller string, admin bool, err error)
}

// Server adapts an *lifecycle.Engine to the four RPC methods, handling
// authentication and error classification so transports stay thin.
type Server struct {
	Engine *lifecycle.Engine
	Auth   TokenAuthenticator
}

func (s *Server) authenticate(ctx context.Context, token string) (string, bool, *Error) {
	if token == "" {
		return "", false, &Error{Category: AuthRequired, Err: errors.New("token required")}
	}
	caller, admin, err := s.Auth.Authenticate(ctx, token)
	if err != nil {
		return "", false, &Error{Category: AuthRequired, Err: err}
	}
	return caller, admin, nil
}

// Up handles the `up` RPC method, streaming progress through onProgress
// before returning the final UpResponse.
func (s *Server) Up(ctx context.Context, p UpParams, onProgress func(string)) (*UpResponse, *Error) {
	caller, _, authErr := s.authenticate(ctx, p.Token)
	if authErr != nil {
		return nil, authErr
	}
	if p.LabID == "" || p.Manifest == nil {
		return nil, &Error{Category: InvalidParams, Err: errors.New("lab_id and manifest are required")}
	}

	result, err := s.Engine.Up(ctx, lifecycle.UpRequest{LabID: p.LabID, Owner: caller, Manifest: p.Manifest}, onProgress)
	if err != nil {
		return nil, Classify(err)
	}
	return &UpResponse{
		LabID: result.LabID, State: string(result.State), MgmtNet: result.MgmtNet,
		Gateway: result.Gateway.String(), BootServer: result.BootServer.String(),
		Nodes: result.Nodes, Links: result.Links, Laggards: result.Laggards, Warning: result.Warning,
	}, nil
}

// Inspect handles the `inspect` RPC method.
func (s *Server) Inspect(ctx context.Context, p InspectParams) (*lifecycle.InspectResult, *Error) {
	_, _, authErr := s.authenticate(ctx, p.Token)
	if authErr != nil {
		return nil, authErr
	}
	result, err := s.Engine.Inspect(p.LabID)
	if err != nil {
		return nil, Classify(err)
	}
	return result, nil
}

// Destroy handles the `destroy` RPC method (owner-or-admin authorization).
func (s *Server) Destroy(ctx context.Context, p DestroyParams) (*DestroyResponse, *Error) {
	caller, admin, authErr := s.authenticate(ctx, p.Token)
	if authErr != nil {
		return nil, authErr
	}
	result, err := s.Engine.Destroy(ctx, lifecycle.DestroyRequest{LabID: p.LabID, Caller: caller, Admin: admin})
	if err != nil {
		return nil, Classify(err)
	}
	return toDestroyResponse(result), nil
}

// Clean handles the admin-only `clean` RPC method.
func (s *Server) Clean(ctx context.Context, p DestroyParams) (*DestroyResponse, *Error) {
	_, admin, authErr := s.authenticate(ctx, p.Token)
	if authErr != nil {
		return nil, authErr
	}
	if !admin {
		return nil, &Error{Category: AccessDenied, Err: errors.New("clean requires an admin token")}
	}
	result, err := s.Engine.Clean(ctx, p.LabID)
	if err != nil {
		return nil, Classify(err)
	}
	return toDestroyResponse(result), nil
}

func toDestroyResponse(r *lifecycle.DestroyResult) *DestroyResponse {
	resp := &DestroyResponse{Summary: r.Summary}
	for _, e := range r.Errors {
		resp.Errors = append(resp.Errors, e.Error())
	}
	return resp
}
