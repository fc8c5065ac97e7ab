// Package fetchproxy provides the public protocol between the engine and the
// background process that fetches stylesheet text on its behalf.
// Out-of-process fetchers should import this package instead of internal
// packages.
package fetchproxy

import (
	"context"
	"errors"
)

// ActionFetchCSS asks for the text of a stylesheet.
const ActionFetchCSS = "fetchCss"

// ErrUnsupportedAction is reported for requests with an unknown action.
var ErrUnsupportedAction = errors.New("unsupported action")

// Request is one message to the fetch proxy.
type Request struct {
	Action string `json:"action"`
	URL    string `json:"url"`
}

// Response carries either the stylesheet text or an error message, never
// both. Errors cross the process boundary as text.
type Response struct {
	CSSText string `json:"cssText,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Err returns the response error, or nil.
func (r Response) Err() error {
	if r.Error == "" {
		return nil
	}
	return &RPCError{Message: r.Error}
}

// Handler answers fetch proxy requests. Implementations report failures in
// the Response rather than panicking.
type Handler interface {
	Handle(ctx context.Context, req Request) Response
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req Request) Response

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, req Request) Response {
	return f(ctx, req)
}

// Unsupported is the response for a request whose action is not known.
func Unsupported(req Request) Response {
	return Response{Error: ErrUnsupportedAction.Error() + ": " + req.Action}
}

// RPCError represents an error returned by the fetch proxy.
type RPCError struct {
	Message string
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	return e.Message
}
