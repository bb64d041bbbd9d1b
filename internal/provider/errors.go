package provider

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Kind classifies a provider failure.
type Kind int

const (
	KindGeneric Kind = iota
	KindAuth
	KindRateLimit
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindRateLimit:
		return "rate_limit"
	case KindNetwork:
		return "network"
	default:
		return "provider"
	}
}

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrAuth      = errors.New("provider authentication failed")
	ErrRateLimit = errors.New("provider rate limit exceeded")
	ErrNetwork   = errors.New("provider unreachable")
	ErrGeneric   = errors.New("provider request failed")
)

// Error is a classified failure from a remote backend.
type Error struct {
	Kind       Kind
	Provider   string
	StatusCode int
	RetryAfter time.Duration
	Detail     string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	b.WriteString(": ")
	b.WriteString(e.sentinel().Error())
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.RetryAfter > 0 {
		fmt.Fprintf(&b, "; retry after %s", e.RetryAfter)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinel.
func (e *Error) Is(target error) bool {
	return target == e.sentinel()
}

func (e *Error) sentinel() error {
	switch e.Kind {
	case KindAuth:
		return ErrAuth
	case KindRateLimit:
		return ErrRateLimit
	case KindNetwork:
		return ErrNetwork
	default:
		return ErrGeneric
	}
}

// KindOf returns the kind of a provider error, or KindGeneric.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindGeneric
}

// MissingKey reports an absent credential without contacting the service.
func MissingKey(name string) error {
	return &Error{Kind: KindAuth, Provider: name, Detail: "API key is not configured"}
}

// Network wraps a transport failure.
func Network(name string, err error) error {
	return &Error{Kind: KindNetwork, Provider: name, Err: err}
}

// Malformed reports a 2xx response whose payload could not be used.
func Malformed(name string, err error) error {
	return &Error{Kind: KindGeneric, Provider: name, Detail: "malformed response", Err: err}
}

const maxDetailBytes = 512

// FromResponse translates a non-2xx HTTP response. It reads (and bounds) the
// body for server detail but does not close it.
func FromResponse(name string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxDetailBytes))
	detail := strings.TrimSpace(string(body))

	e := &Error{Provider: name, StatusCode: resp.StatusCode, Detail: detail}
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		e.Kind = KindAuth
	case resp.StatusCode == http.StatusTooManyRequests:
		e.Kind = KindRateLimit
		e.RetryAfter = ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
	case resp.StatusCode >= 500:
		e.Kind = KindNetwork
	default:
		e.Kind = KindGeneric
	}
	return e
}

// ParseRetryAfter accepts delta-seconds or an HTTP date. Unparseable or past
// values yield zero.
func ParseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d.Round(time.Second)
		}
	}
	return 0
}
