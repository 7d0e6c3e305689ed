package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	apperrors "github.com/chatsounds/soundboard-server/internal/errors"
	"github.com/chatsounds/soundboard-server/internal/httputil"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

// errorWriter is shared by every handler; production hides internal causes.
var errorWriter = httputil.ErrorWriter{}

// SetProduction switches error rendering for all handlers.
func SetProduction(production bool) {
	errorWriter.Production = production
}

func writeError(w http.ResponseWriter, err error) {
	errorWriter.WriteError(w, err)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.ValidationError("Request body is required")
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperrors.ValidationError("Request body too large")
		}
		return apperrors.ValidationError("Invalid JSON body").WithDetails(err.Error())
	}
	return nil
}
