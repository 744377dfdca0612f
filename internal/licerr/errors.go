// Package licerr defines the failure taxonomy shared by every stage of license
// response checking.
//
// Callers branch on Kind rather than on message text. The messages for
// Malformed, Signature and Shape are fixed; Transport and ServerRejected carry
// the text they were given without alteration.
package licerr

import "errors"

// Kind is the origin of a failure, ordered by where it is detected.
type Kind string

const (
	KindTransport      Kind = "TransportUnreachable"
	KindServerRejected Kind = "ServerRejected"
	KindMalformed      Kind = "MalformedResponse"
	KindSignature      Kind = "SignatureInvalid"
	KindShape          Kind = "ShapeMismatch"
)

const (
	MsgMalformed = "Could not parse the server response."
	MsgSignature = "The signature check failed."
	MsgShape     = "Unexpected response shape."
	MsgTransport = "Could not contact the server."
)

// Error is the structured failure returned by the checking pipeline.
//
// Message is what a caller shows to a user. Cause is kept for logs only; for
// signature failures it is never folded into Message.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches another *Error of the same Kind, so errors.Is(err, licerr.Signature)
// works without comparing messages.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return t.Message == "" && t.Cause == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	Transport      = &Error{Kind: KindTransport}
	ServerRejected = &Error{Kind: KindServerRejected}
	Malformed      = &Error{Kind: KindMalformed}
	Signature      = &Error{Kind: KindSignature}
	Shape          = &Error{Kind: KindShape}
)

func NewTransport(msg string, cause error) error {
	if msg == "" {
		msg = MsgTransport
	}
	return &Error{Kind: KindTransport, Message: msg, Cause: cause}
}

func NewServerRejected(msg string) error {
	return &Error{Kind: KindServerRejected, Message: msg}
}

func NewMalformed(cause error) error {
	return &Error{Kind: KindMalformed, Message: MsgMalformed, Cause: cause}
}

func NewSignature(cause error) error {
	return &Error{Kind: KindSignature, Message: MsgSignature, Cause: cause}
}

func NewShape(cause error) error {
	return &Error{Kind: KindShape, Message: MsgShape, Cause: cause}
}

// KindOf reports the Kind of err, or "" when err is not a *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e.Kind
	}
	return ""
}

// Message returns the user-facing text for err. Errors from outside the
// taxonomy are reported as malformed responses so no internal detail leaks.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e.Message
	}
	return MsgMalformed
}
