package telegram

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/Gopher0727/GroupKeeper/internal/apperr"
)

// APIError is an unsuccessful Bot API reply.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// Unwrap classifies the reply. A 409 on getUpdates means another process is
// polling with the same token.
func (e *APIError) Unwrap() error {
	switch {
	case e.Code == http.StatusConflict:
		return apperr.ErrDuplicateInstance
	case e.Code == http.StatusBadRequest && strings.Contains(strings.ToLower(e.Description), "not found"):
		return apperr.ErrNotFound
	case e.Code == http.StatusForbidden:
		return apperr.ErrPermissionDenied
	default:
		return apperr.ErrTransport
	}
}
