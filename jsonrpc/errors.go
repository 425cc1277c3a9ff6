package jsonrpc

import "fmt"

const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Kind classifies a JSONRPCError by its reserved code.
type Kind int

const (
	KindInternal Kind = iota
	KindParse
	KindInvalidRequest
	KindInvalidMethod
	KindInvalidParam
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "parse"
	case KindInvalidRequest:
		return "invalid_request"
	case KindInvalidMethod:
		return "invalid_method"
	case KindInvalidParam:
		return "invalid_param"
	default:
		return "internal"
	}
}

// JSONRPCError is an expected, caller-visible failure. The dispatcher copies its
// code and message into the response error object verbatim.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *JSONRPCError) Error() string {
	if e == nil {
		return "jsonrpc: nil error"
	}
	return e.Message
}

// Kind reports the error kind implied by e.Code.
func (e *JSONRPCError) Kind() Kind {
	switch e.Code {
	case CodeParseError:
		return KindParse
	case CodeInvalidRequest:
		return KindInvalidRequest
	case CodeMethodNotFound:
		return KindInvalidMethod
	case CodeInvalidParams:
		return KindInvalidParam
	default:
		return KindInternal
	}
}

func NewError(code int, message string) *JSONRPCError {
	return &JSONRPCError{Code: code, Message: message}
}

// ParseError reports a malformed transport or envelope. An empty message
// selects the default "Parse error".
func ParseError(message string) *JSONRPCError {
	return newKindError(CodeParseError, message, "Parse error")
}

// InvalidRequestError reports a well-formed envelope that is semantically
// invalid, or a request rejected by a pre-dispatch hook.
func InvalidRequestError(message string) *JSONRPCError {
	return newKindError(CodeInvalidRequest, message, "Invalid Request")
}

// InvalidMethodError reports an unknown method or a call that does not fit the
// method's declared parameters.
func InvalidMethodError(message string) *JSONRPCError {
	return newKindError(CodeMethodNotFound, message, "Method not found")
}

// InvalidParamError is available to methods for parameter validation.
func InvalidParamError(message string) *JSONRPCError {
	return newKindError(CodeInvalidParams, message, "Invalid params")
}

func InternalError(message string) *JSONRPCError {
	return newKindError(CodeInternalError, message, "Internal error")
}

// InvalidParamErrorf formats an InvalidParamError.
func InvalidParamErrorf(format string, args ...any) *JSONRPCError {
	return InvalidParamError(fmt.Sprintf(format, args...))
}

func newKindError(code int, message, fallback string) *JSONRPCError {
	if message == "" {
		message = fallback
	}
	return &JSONRPCError{Code: code, Message: message}
}
