package server

import (
	"net/http"

	apperrors "github.com/quotagate/quotagate/internal/errors"
)

// HandleError renders err as a JSON envelope. Limiter sentinel errors map
// to 400, 503 or 504 through apperrors.FromLimiterError.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.RespondWithError(w, r, err)
}
