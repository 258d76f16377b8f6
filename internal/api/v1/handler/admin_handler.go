package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"edupro/internal/api/v1/dto"
	"edupro/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// AdminHandler handles admin login and the management listing
type AdminHandler struct {
	adminService  service.AdminService
	courseService service.CourseService
	validate      *validator.Validate
	logger        zerolog.Logger
}

func NewAdminHandler(
	adminService service.AdminService,
	courseService service.CourseService,
	validate *validator.Validate,
	logger zerolog.Logger,
) *AdminHandler {
	return &AdminHandler{
		adminService:  adminService,
		courseService: courseService,
		validate:      validate,
		logger:        logger.With().Str("handler", "AdminHandler").Logger(),
	}
}

// RegisterRoutes mounts admin routes
func (h *AdminHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.HandleFunc("/admin/login", h.login)
	mux.Handle("/admin/courses", authMw(http.HandlerFunc(h.listCourses)))
}

func (h *AdminHandler) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	var req dto.AdminLoginDTO
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload: "+err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			resp := dto.ErrorResponseDTO{Error: "Validation failed"}
			for _, fe := range fieldErrs {
				if fe.Tag() == "required" {
					resp.Missing = append(resp.Missing, fe.Field())
				} else {
					resp.Invalid = append(resp.Invalid, fe.Field())
				}
			}
			writeJSON(w, http.StatusBadRequest, resp)
			return
		}
		writeError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	session, err := h.adminService.Login(r.Context(), req.Email, req.PIN)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.AdminSessionDTO{Token: session.Token, ExpiresAt: session.ExpiresAt})
}

func (h *AdminHandler) listCourses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	courses, err := h.courseService.ListCourses(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	resp := make([]dto.AdminCourseDTO, 0, len(courses))
	for _, c := range courses {
		resp = append(resp, dto.NewAdminCourse(c))
	}
	writeJSON(w, http.StatusOK, resp)
}
