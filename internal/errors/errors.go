// Package errors renders failures as JSON error envelopes for the HTTP
// service.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	gferrors "github.com/fulmenhq/gofulmen/errors"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/3leaps/ossxml/pkg/decode"
	"github.com/3leaps/ossxml/pkg/provider"
)

// Error codes.
const (
	CodeBadRequest         = "BAD_REQUEST"
	CodeDecodeFailed       = "DECODE_FAILED"
	CodeNotFound           = "NOT_FOUND"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	CodeForbidden          = "FORBIDDEN"
	CodeThrottled          = "THROTTLED"
	CodeTooLarge           = "REQUEST_TOO_LARGE"
	CodeUpstream           = "UPSTREAM_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeInternal           = "INTERNAL_ERROR"
)

// HTTPError is an error with a fixed status and code.
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
	Err     error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *HTTPError) Unwrap() error { return e.Err }

// New returns an HTTPError without a cause.
func New(status int, code, message string) *HTTPError {
	return &HTTPError{Status: status, Code: code, Message: message}
}

// BadRequest wraps err as a 400.
func BadRequest(message string, err error) *HTTPError {
	return &HTTPError{Status: http.StatusBadRequest, Code: CodeBadRequest, Message: message, Err: err}
}

// HTTPErrorResponse is the JSON body of every error response. The request
// id travels as the envelope's correlation_id.
type HTTPErrorResponse struct {
	Error *gferrors.ErrorEnvelope `json:"error"`
}

// Envelope converts e into an error envelope for the request identified by
// requestID. Server-side failures are marked high severity.
func (e *HTTPError) Envelope(requestID string) *gferrors.ErrorEnvelope {
	env := gferrors.NewErrorEnvelope(e.Code, e.Message).WithCorrelationID(requestID)
	if len(e.Details) > 0 {
		env = env.WithDetails(e.Details)
	}
	severity := gferrors.SeverityLow
	if e.Status >= http.StatusInternalServerError {
		severity = gferrors.SeverityHigh
	}
	env, _ = env.WithSeverity(severity)
	return env
}

// Classify maps err to an HTTPError. Decode failures become 422 with the
// failure kind in the details; provider failures keep their meaning.
func Classify(err error) *HTTPError {
	var he *HTTPError
	if stderrors.As(err, &he) {
		return he
	}

	var mbe *http.MaxBytesError
	switch {
	case stderrors.As(err, &mbe):
		return &HTTPError{Status: http.StatusRequestEntityTooLarge, Code: CodeTooLarge, Message: "request body too large", Err: err}
	case decodeKind(err) != "":
		return &HTTPError{
			Status:  http.StatusUnprocessableEntity,
			Code:    CodeDecodeFailed,
			Message: err.Error(),
			Details: map[string]any{"kind": decodeKind(err)},
		}
	case provider.IsNotFound(err), provider.IsBucketNotFound(err):
		return &HTTPError{Status: http.StatusNotFound, Code: CodeNotFound, Message: err.Error()}
	case provider.IsAccessDenied(err), provider.IsInvalidCredentials(err):
		return &HTTPError{Status: http.StatusForbidden, Code: CodeForbidden, Message: err.Error()}
	case provider.IsThrottled(err):
		return &HTTPError{Status: http.StatusTooManyRequests, Code: CodeThrottled, Message: err.Error()}
	case provider.IsMalformedResponse(err):
		return &HTTPError{Status: http.StatusBadGateway, Code: CodeUpstream, Message: err.Error()}
	case provider.IsProviderUnavailable(err):
		return &HTTPError{Status: http.StatusServiceUnavailable, Code: CodeServiceUnavailable, Message: err.Error()}
	}
	return &HTTPError{Status: http.StatusInternalServerError, Code: CodeInternal, Message: "internal error", Err: err}
}

func decodeKind(err error) string {
	switch {
	case decode.IsXMLError(err):
		return decode.KindXML.String()
	case decode.IsCustomError(err):
		return decode.KindCustom.String()
	case decode.IsItemError(err):
		return decode.KindItem.String()
	}
	return ""
}

// RespondWithError writes the envelope for err, tagged with the request id.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	he := Classify(err)
	env := he.Envelope(chimw.GetReqID(r.Context())).WithPath(r.URL.Path)
	WriteJSON(w, he.Status, HTTPErrorResponse{Error: env})
}

// WriteJSON writes v with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// NotFoundHandler answers unknown routes.
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	RespondWithError(w, r, New(http.StatusNotFound, CodeNotFound, "no route for "+r.URL.Path))
}

// MethodNotAllowedHandler answers known routes hit with the wrong method.
func MethodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	RespondWithError(w, r, New(http.StatusMethodNotAllowed, CodeMethodNotAllowed, r.Method+" not allowed on "+r.URL.Path))
}
