package discovery

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrStalledCursor means the API reported more pages without advancing the cursor.
var ErrStalledCursor = errors.New("search cursor did not advance")

// DiscoveryError reports why a search request failed.
// StatusCode is zero for transport faults.
type DiscoveryError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *DiscoveryError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode != 0:
		return fmt.Sprintf("discovery failed (status %d): %v", e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("discovery failed: %v", e.Err)
	default:
		return fmt.Sprintf("discovery failed (status %d): %s", e.StatusCode, e.Body)
	}
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// Explain returns a human explanation of the failure for the operator.
func (e *DiscoveryError) Explain() string {
	switch {
	case e.StatusCode == http.StatusUnauthorized:
		return "token invalid or expired; check that the GitHub token is correct and has the required scopes"
	case e.StatusCode == http.StatusForbidden:
		return "rate limit reached or insufficient permissions; wait a few minutes or check the token permissions"
	case e.StatusCode >= http.StatusInternalServerError:
		return fmt.Sprintf("temporary GitHub server problem (status %d); try again in a few minutes", e.StatusCode)
	case e.StatusCode != 0 && e.Err == nil:
		return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
	default:
		return e.Error()
	}
}
