package provider

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/felixgeelhaar/pmteam/internal/errors"
)

// classify maps a transport failure or non-200 response onto a coded error.
func classify(provider string, status int, header http.Header, detail string, cause error) error {
	if cause != nil {
		if stderrors.Is(cause, context.DeadlineExceeded) {
			return errors.Wrap(errors.ErrCodeProviderTimeout, provider+" request timed out", cause)
		}
		return errors.Wrap(errors.ErrCodeProviderAPI, provider+" request failed", cause)
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.NewProviderAuthError(provider)
	case status == http.StatusTooManyRequests:
		return errors.NewProviderRateLimitError(provider, header.Get("Retry-After"))
	default:
		return errors.New(errors.ErrCodeProviderAPI, fmt.Sprintf("%s error (http %d): %s", provider, status, detail))
	}
}
