// Package xerrors defines the error kinds shared by every protocol session
// in obdkit. Each kind is a small typed value, covering K-line, KWP2000 and
// ISO-TP failures under one vocabulary so the CLI can map any of them onto
// an exit code without a type switch per package.
package xerrors

import "fmt"

func messageOrDefault(msg, fallback string) string {
	if msg != "" {
		return msg
	}
	return fallback
}

// Kind classifies an error for exit-code and retry-policy purposes.
type Kind int

const (
	KindIO Kind = iota
	KindTimeout
	KindEchoMismatch
	KindComplementMismatch
	KindCounterMismatch
	KindChecksumMismatch
	KindUnexpectedBlock
	KindNegativeResponse
	KindUnsupported
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "IoError"
	case KindTimeout:
		return "Timeout"
	case KindEchoMismatch:
		return "EchoMismatch"
	case KindComplementMismatch:
		return "ComplementMismatch"
	case KindCounterMismatch:
		return "CounterMismatch"
	case KindChecksumMismatch:
		return "ChecksumMismatch"
	case KindUnexpectedBlock:
		return "UnexpectedBlock"
	case KindNegativeResponse:
		return "NegativeResponse"
	case KindUnsupported:
		return "Unsupported"
	default:
		return "Unknown"
	}
}

// Error is the common shape of every obdkit protocol error.
type Error struct {
	Kind Kind
	msg  string
	Raw  []byte // raw payload, populated for UnexpectedBlock/NegativeResponse
	err  error  // wrapped cause, for IoError/Timeout
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", messageOrDefault(e.msg, e.Kind.String()), e.err)
	}
	return messageOrDefault(e.msg, e.Kind.String())
}

func (e *Error) Unwrap() error { return e.err }

// Recoverable reports whether the current session can continue after this
// error. Per the propagation policy, every wire-level error is fatal to the
// session; only application-layer results (negative response, no DTCs) are
// ordinary values and never reach here as errors.
func (e *Error) Recoverable() bool { return false }

// ExitCode maps the error kind onto the CLI exit-code convention:
// 1 protocol-layer failure, 2 I/O/device failure, 3 invalid argument.
func (e *Error) ExitCode() int {
	switch e.Kind {
	case KindIO:
		return 2
	case KindUnsupported:
		return 3
	default:
		return 1
	}
}

func IO(msg string, cause error) error {
	return &Error{Kind: KindIO, msg: msg, err: cause}
}

func Timeout(msg string) error {
	return &Error{Kind: KindTimeout, msg: msg}
}

func EchoMismatch(msg string) error {
	return &Error{Kind: KindEchoMismatch, msg: msg}
}

func ComplementMismatch(msg string) error {
	return &Error{Kind: KindComplementMismatch, msg: msg}
}

func CounterMismatch(msg string) error {
	return &Error{Kind: KindCounterMismatch, msg: msg}
}

func ChecksumMismatch(msg string) error {
	return &Error{Kind: KindChecksumMismatch, msg: msg}
}

func UnexpectedBlock(msg string, raw []byte) error {
	return &Error{Kind: KindUnexpectedBlock, msg: msg, Raw: raw}
}

func NegativeResponse(msg string, raw []byte) error {
	return &Error{Kind: KindNegativeResponse, msg: msg, Raw: raw}
}

func Unsupported(msg string) error {
	return &Error{Kind: KindUnsupported, msg: msg}
}

// As reports whether err is an *Error of the given kind.
func As(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}
