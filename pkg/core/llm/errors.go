package llm

import (
	"context"
	"errors"
	"float_share/pkg/core/domain"
	"float_share/pkg/core/resilience"
	"net"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

// classifyError tags a raw SDK or transport error with a domain kind.
// Callers branch on the kind only; message text is inspected here and nowhere else.
func classifyError(op string, err error) error {
	if err == nil {
		return nil
	}
	if domain.KindOf(err) != nil {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	if apiErr, ok := asAPIError(err); ok {
		return domain.WrapError(apiErrorKind(apiErr), op, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.WrapError(domain.ErrConnection, op, err)
	}

	return domain.WrapError(domain.ErrTransient, op, err)
}

func asAPIError(err error) (genai.APIError, bool) {
	var val genai.APIError
	if errors.As(err, &val) {
		return val, true
	}
	var ptr *genai.APIError
	if errors.As(err, &ptr) && ptr != nil {
		return *ptr, true
	}
	return genai.APIError{}, false
}

func apiErrorKind(e genai.APIError) error {
	msg := strings.ToLower(e.Message)

	switch {
	case strings.Contains(msg, "not in an active state"),
		e.Status == "FAILED_PRECONDITION" && strings.Contains(msg, "file"):
		return domain.ErrResourceNotReady
	case e.Code == http.StatusRequestEntityTooLarge,
		e.Code == http.StatusBadRequest && mentionsSizeLimit(msg):
		return domain.ErrContentTooLarge
	case e.Code == http.StatusNotFound:
		return domain.ErrNotFound
	case e.Code == http.StatusRequestTimeout,
		e.Code == http.StatusTooManyRequests,
		e.Code >= 500:
		return domain.ErrTransient
	case e.Code >= 400:
		return domain.ErrRejected
	default:
		return domain.ErrTransient
	}
}

func mentionsSizeLimit(msg string) bool {
	for _, s := range []string{"token limit", "too long", "too large", "exceeds the maximum", "input token count"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// RetryDelays configures the wait between attempts per error kind.
type RetryDelays struct {
	NotReady  time.Duration
	Transient time.Duration
}

// DefaultRetryDelays waits longer for the upload activation race than for
// other transient failures.
var DefaultRetryDelays = RetryDelays{NotReady: 10 * time.Second, Transient: 5 * time.Second}

func (d RetryDelays) classifier() resilience.Classifier {
	return func(err error) resilience.Classification {
		switch {
		case domain.IsKind(err, domain.ErrResourceNotReady):
			return resilience.Classification{Retryable: true, Delay: d.NotReady}
		case domain.IsKind(err, domain.ErrTransient), domain.IsKind(err, domain.ErrConnection):
			return resilience.Classification{Retryable: true, Delay: d.Transient}
		default:
			return resilience.Classification{}
		}
	}
}
