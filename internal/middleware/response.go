package middleware

import (
	"net/http"

	apperrors "github.com/chatsounds/soundboard-server/internal/errors"
	"github.com/chatsounds/soundboard-server/internal/httputil"
)

// reject renders middleware failures in the same shape handlers use.
// A zero status takes the one mapped from the error code.
func reject(w http.ResponseWriter, status int, err *apperrors.AppError) {
	if status == 0 {
		status = httputil.StatusFromCode(err.Code)
	}
	httputil.WriteErrorWithStatus(w, status, err)
}
