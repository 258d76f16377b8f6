package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"edupro/internal/api/v1/dto"
	"edupro/internal/middleware"
	"edupro/internal/service"

	"github.com/rs/zerolog"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, dto.ErrorResponseDTO{Error: msg})
}

// writeServiceError maps service error kinds onto HTTP statuses. Storage
// failures are logged with their cause and the request id, and reported
// without the cause.
func writeServiceError(w http.ResponseWriter, r *http.Request, base zerolog.Logger, err error) {
	logger := middleware.RequestLogger(r.Context(), base)
	var (
		verr       *service.ValidationError
		storageErr *service.StorageError
	)
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponseDTO{
			Error:   verr.Error(),
			Missing: verr.Missing,
			Invalid: verr.Invalid,
		})
	case errors.Is(err, service.ErrDuplicateCourse):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "Course not found")
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &storageErr):
		logger.Error().Err(storageErr.Err).Str("op", storageErr.Op).Msg("Storage failure")
		writeError(w, http.StatusInternalServerError, "Storage failure during "+storageErr.Op)
	default:
		logger.Error().Err(err).Msg("Unhandled service error")
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// parseCourseID reads the numeric id after /courses/ and returns the rest of
// the path ("", "video", "material", "donation-qr").
func parseCourseID(path string) (int64, string, bool) {
	rest := strings.TrimPrefix(path, "/courses/")
	idPart, sub, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return 0, "", false
	}
	return id, sub, true
}
