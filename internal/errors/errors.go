package errors

import (
	"fmt"
	"strings"

	"github.com/gerrit-tools/serviceuser-cli/internal/gerrit"
)

// Handle maps client sentinel errors to friendly user-facing messages and
// returns a formatted error that Cobra will print before exiting with code 1.
func Handle(siteURL string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case gerrit.IsNotAuthorized(err):
		return fmt.Errorf("permission denied — your account does not have access to perform this operation")
	case gerrit.IsNotFound(err):
		return fmt.Errorf("not found — the requested resource does not exist")
	case gerrit.IsConflict(err):
		return fmt.Errorf("conflict — %w", err)
	case isConnectionError(err):
		if siteURL != "" {
			return fmt.Errorf("could not connect to Gerrit at %s — check the site URL and your network", siteURL)
		}
		return fmt.Errorf("could not connect to Gerrit — check the site URL and your network")
	default:
		return err
	}
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	// url.Error wraps connection refused, no such host, etc.
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "dial tcp") ||
		strings.Contains(msg, "i/o timeout") ||
		strings.Contains(msg, "EOF")
}
