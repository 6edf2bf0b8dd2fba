package auth

import (
	"context"
	"errors"
	"net"
	"syscall"

	"github.com/wolfeidau/classdesk/internal/client"
)

// ErrorKind classifies a failed login for display.
type ErrorKind int

const (
	Unclassified ErrorKind = iota
	InvalidCredentials
	ServerFault
	Timeout
	NetworkFailure
	ServiceUnavailable
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidCredentials:
		return "invalid_credentials"
	case ServerFault:
		return "server_fault"
	case Timeout:
		return "timeout"
	case NetworkFailure:
		return "network_failure"
	case ServiceUnavailable:
		return "service_unavailable"
	default:
		return "unclassified"
	}
}

// User facing messages per failure kind.
const (
	MsgInvalidCredentials = "Incorrect username or password"
	MsgServerFault        = "Server error, please try again later"
	MsgTimeout            = "Connection timed out, please check your network"
	MsgNetworkFailure     = "Network connection failed, please check your network"
	MsgServiceUnavailable = "Service temporarily unavailable, please try again later"
	MsgLoginFailed        = "Login failed, please try again"
)

// LoginError is returned by Login. Message is safe to show to the user, Err is the cause.
type LoginError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *LoginError) Error() string {
	return e.Message
}

func (e *LoginError) Unwrap() error {
	return e.Err
}

// Classify maps a login failure to the message the user should see.
// A response from the backend is classified by status code; a failure to get any
// response is split into timeout, network failure and service unavailable.
func Classify(err error) *LoginError {
	if err == nil {
		return nil
	}

	var loginErr *LoginError
	if errors.As(err, &loginErr) {
		return loginErr
	}

	var httpErr *client.HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == 401:
			return &LoginError{Kind: InvalidCredentials, Message: MsgInvalidCredentials, Err: err}
		case httpErr.StatusCode >= 500:
			return &LoginError{Kind: ServerFault, Message: MsgServerFault, Err: err}
		}
		msg := httpErr.Message
		if msg == "" {
			msg = MsgLoginFailed
		}
		return &LoginError{Kind: Unclassified, Message: msg, Err: err}
	}

	if errors.Is(err, client.ErrInvalidResponse) {
		return &LoginError{Kind: Unclassified, Message: MsgLoginFailed, Err: err}
	}

	if isTimeout(err) {
		return &LoginError{Kind: Timeout, Message: MsgTimeout, Err: err}
	}

	if isNetworkFailure(err) {
		return &LoginError{Kind: NetworkFailure, Message: MsgNetworkFailure, Err: err}
	}

	return &LoginError{Kind: ServiceUnavailable, Message: MsgServiceUnavailable, Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isNetworkFailure(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET)
}
