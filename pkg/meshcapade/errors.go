package meshcapade

import "fmt"

// AuthError reports a failed token exchange. Credentials are never
// included in the message.
type AuthError struct {
	Status int
	Detail string
}

func (e *AuthError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("authentication failed (status %d): %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("authentication failed: %s", e.Detail)
}

// APIError reports a non-2xx response from an avatar endpoint.
type APIError struct {
	Status   int
	Endpoint string
	Detail   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Endpoint, e.Status, e.Detail)
}

// NotReadyError signals that the avatar has not finished fitting yet.
// It is informational: the caller is expected to try again later.
type NotReadyError struct {
	State State
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("avatar not ready yet (state %s)", e.State)
}
