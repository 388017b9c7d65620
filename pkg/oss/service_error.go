package oss

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"net/http"

	"github.com/aws/smithy-go"
	smithyxml "github.com/aws/smithy-go/encoding/xml"
)

// ServiceError is an error response returned by the service:
//
//	<Error>
//	  <Code>NoSuchBucket</Code>
//	  <Message>The specified bucket does not exist.</Message>
//	  <RequestId>5C3D9175B6FC201293AD****</RequestId>
//	</Error>
type ServiceError struct {
	StatusCode int
	Code       string
	Message    string
	RequestID  string
}

var _ smithy.APIError = (*ServiceError)(nil)

// ParseServiceError decodes an error response body. When the body carries no
// error code the HTTP status text is used instead.
func ParseServiceError(statusCode int, body []byte) *ServiceError {
	se := &ServiceError{StatusCode: statusCode}
	if len(bytes.TrimSpace(body)) > 0 {
		components, err := smithyxml.GetErrorResponseComponents(bytes.NewReader(body), true)
		if err == nil {
			se.Code = components.Code
			se.Message = components.Message
		}
		se.RequestID = errorRequestID(body)
	}
	if se.Code == "" {
		se.Code = http.StatusText(statusCode)
		if se.Code == "" {
			se.Code = fmt.Sprintf("HTTP%d", statusCode)
		}
	}
	return se
}

// errorRequestID returns the RequestId child of the body's root element, or
// "" when there is none.
func errorRequestID(body []byte) string {
	dec := xml.NewDecoder(bytes.NewReader(body))
	root, err := smithyxml.FetchRootElement(dec)
	if err != nil {
		return ""
	}
	el, err := smithyxml.WrapNodeDecoder(dec, root).GetElement("RequestId")
	if err != nil {
		return ""
	}
	v, err := smithyxml.WrapNodeDecoder(dec, el).Value()
	if err != nil {
		return ""
	}
	return string(bytes.TrimSpace(v))
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	msg := fmt.Sprintf("oss: %d %s", e.StatusCode, e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.RequestID != "" {
		msg += " (request id " + e.RequestID + ")"
	}
	return msg
}

// ErrorCode returns the service error code.
func (e *ServiceError) ErrorCode() string { return e.Code }

// ErrorMessage returns the service error message.
func (e *ServiceError) ErrorMessage() string { return e.Message }

// ErrorFault attributes the error to the client for 4xx responses and to the
// server for 5xx responses.
func (e *ServiceError) ErrorFault() smithy.ErrorFault {
	switch {
	case e.StatusCode >= 500:
		return smithy.FaultServer
	case e.StatusCode >= 400:
		return smithy.FaultClient
	default:
		return smithy.FaultUnknown
	}
}
