package errcode

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io/fs"
	"net"
	"net/http"
	"os"
	"strconv"
	"syscall"
)

// FromStatus maps a non-2xx HTTP status to an error. 5xx responses are
// retryable, 4xx are not.
func FromStatus(status int) *Error {
	var code Code
	switch {
	case status == http.StatusUnauthorized || status == http.StatusProxyAuthRequired:
		code = E502
	case status >= 500:
		code = E203
	case status >= 400:
		code = E202
	default:
		code = E200
	}
	return Newf(code, "status %d %s", status, http.StatusText(status)).With("status", strconv.Itoa(status))
}

// FromTransport classifies an error returned while sending a request or
// reading its body.
func FromTransport(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := As(err); ok {
		return e
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return Wrap(E404, err)
	}

	var certErr *tls.CertificateVerificationError
	var unknownAuth x509.UnknownAuthorityError
	var hostErr x509.HostnameError
	var invalidCert x509.CertificateInvalidError
	var recordErr tls.RecordHeaderError
	if errors.As(err, &certErr) || errors.As(err, &unknownAuth) || errors.As(err, &hostErr) ||
		errors.As(err, &invalidCert) || errors.As(err, &recordErr) {
		return Wrap(E205, err)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return Wrap(E404, err)
		}
		return Wrap(E401, err)
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return Wrap(E403, err)
	}
	if errors.Is(err, syscall.ENETUNREACH) || errors.Is(err, syscall.EHOSTUNREACH) {
		return Wrap(E402, err)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		if opErr.Timeout() {
			return Wrap(E201, err)
		}
		return Wrap(E400, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Wrap(E404, err)
	}
	return Wrap(E400, err)
}

// FromFS classifies a local filesystem error. op selects the code used when
// the error is not a permission or missing-file failure.
func FromFS(err error, op Code) *Error {
	if err == nil {
		return nil
	}
	if e, ok := As(err); ok {
		return e
	}
	switch {
	case errors.Is(err, fs.ErrPermission):
		return Wrap(E102, err)
	case errors.Is(err, fs.ErrNotExist) && op != E103:
		return Wrap(E101, err)
	case errors.Is(err, syscall.ENOSPC):
		return Wrap(E505, err)
	}
	return Wrap(op, err)
}
