package ai

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
)

// Image is the uploaded photo handed to a provider.
type Image struct {
	Data     []byte
	MIMEType string
}

// DataURL renders the image as data:<mime>;base64,<payload>.
func (img Image) DataURL() string {
	mime := img.MIMEType
	if mime == "" {
		mime = http.DetectContentType(img.Data)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// Provider turns an image plus instruction into free-form text.
type Provider interface {
	Analyze(ctx context.Context, img Image, prompt string) (string, error)
}

// ProviderError is returned for non-2xx responses, empty or malformed bodies and transport faults.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	Retryable  bool
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a transient provider failure.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// transportError wraps an error from http.Client.Do. Caller cancellation and
// deadlines are never retried.
func transportError(provider string, err error) *ProviderError {
	pe := &ProviderError{Provider: provider, Message: err.Error(), Err: err}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return pe
	}
	pe.Retryable = isNetworkFault(err)
	return pe
}

// isNetworkFault reports transport failures worth another attempt. Certificate
// problems, unknown hosts and malformed URLs fail the same way every time.
func isNetworkFault(err error) bool {
	var (
		certErr     *tls.CertificateVerificationError
		unknownAuth x509.UnknownAuthorityError
		hostErr     x509.HostnameError
		invalidCert x509.CertificateInvalidError
		dnsErr      *net.DNSError
	)
	switch {
	case errors.As(err, &certErr), errors.As(err, &unknownAuth),
		errors.As(err, &hostErr), errors.As(err, &invalidCert):
		return false
	case errors.As(err, &dnsErr) && dnsErr.IsNotFound:
		return false
	}

	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var oe *net.OpError
	if errors.As(err, &oe) {
		return oe.Op == "dial" || oe.Op == "read"
	}
	return false
}

func statusError(provider string, code int, body string) *ProviderError {
	if body == "" {
		body = http.StatusText(code)
	}
	return &ProviderError{
		Provider:   provider,
		StatusCode: code,
		Message:    body,
		Retryable:  retryableStatus(code),
	}
}
