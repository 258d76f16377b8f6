package handler

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path"
	"strings"
	"time"

	"edupro/internal/api/v1/dto"
	"edupro/internal/middleware"
	"edupro/internal/model"
	"edupro/internal/service"

	"github.com/rs/zerolog"
)

// multipartMemory is how much of a form is kept in memory before spilling
// file parts to disk.
const multipartMemory = 32 << 20

// CourseHandler handles course-related endpoints
type CourseHandler struct {
	courseService  service.CourseService
	maxUploadBytes int64
	logger         zerolog.Logger
}

// NewCourseHandler creates a new CourseHandler
func NewCourseHandler(courseService service.CourseService, maxUploadBytes int64, logger zerolog.Logger) *CourseHandler {
	return &CourseHandler{
		courseService:  courseService,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With().Str("handler", "CourseHandler").Logger(),
	}
}

// RegisterRoutes mounts course routes. Reads are public, writes go through
// authMw.
func (h *CourseHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	create := authMw(http.HandlerFunc(h.createCourse))
	remove := authMw(http.HandlerFunc(h.deleteCourse))

	mux.HandleFunc("/courses", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.listCourses(w, r)
		case http.MethodPost:
			create.ServeHTTP(w, r)
		default:
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/courses/", func(w http.ResponseWriter, r *http.Request) {
		_, sub, ok := parseCourseID(r.URL.Path)
		if !ok {
			http.NotFound(w, r)
			return
		}
		switch {
		case r.Method == http.MethodDelete && sub == "":
			remove.ServeHTTP(w, r)
		case r.Method != http.MethodGet:
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		case sub == "":
			h.getCourse(w, r)
		case sub == "video":
			h.streamVideo(w, r)
		case sub == "material":
			h.downloadMaterial(w, r)
		case sub == "donation-qr":
			h.donationQR(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// listCourses returns the catalog newest first, or the local search result
// when q is non-blank.
func (h *CourseHandler) listCourses(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	resp := dto.CourseListDTO{Courses: []dto.CourseResponseDTO{}}

	if query != "" {
		courses, performed, err := h.courseService.SearchCourses(r.Context(), query)
		if err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
		resp.Query = query
		resp.Searched = performed
		for _, c := range courses {
			resp.Courses = append(resp.Courses, dto.NewCourseResponse(c, nil))
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	entries, err := h.courseService.ListCatalog(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	for _, e := range entries {
		resp.Courses = append(resp.Courses, dto.NewCourseResponse(e.Course, e.Content))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *CourseHandler) createCourse(w http.ResponseWriter, r *http.Request) {
	admin, _ := middleware.AdminFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Upload exceeds the size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	in := service.NewCourseInput{
		Title:           r.FormValue("title"),
		Description:     r.FormValue("description"),
		InstructorName:  r.FormValue("instructor_name"),
		InstructorEmail: r.FormValue("instructor_email"),
		ContentTitle:    r.FormValue("content_title"),
	}
	var err error
	if in.Video, err = formUpload(r, "video"); err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read video: "+err.Error())
		return
	}
	if in.Material, err = formUpload(r, "material"); err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read material: "+err.Error())
		return
	}
	if in.DonationQR, err = formUpload(r, "donation_qr"); err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read donation QR: "+err.Error())
		return
	}

	created, err := h.courseService.AddCourse(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	reqLogger := middleware.RequestLogger(r.Context(), h.logger)
	reqLogger.Info().Str("admin", admin).Int64("course_id", created.Course.ID).Msg("Course created via API")
	writeJSON(w, http.StatusCreated, dto.CourseCreatedDTO{
		CourseID:    created.Course.ID,
		ContentID:   created.Content.ID,
		DeletionPIN: created.DeletionPIN,
	})
}

func (h *CourseHandler) getCourse(w http.ResponseWriter, r *http.Request) {
	id, _, _ := parseCourseID(r.URL.Path)
	entry, err := h.courseService.GetCourse(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewCourseResponse(entry.Course, entry.Content))
}

func (h *CourseHandler) deleteCourse(w http.ResponseWriter, r *http.Request) {
	id, _, _ := parseCourseID(r.URL.Path)
	admin, _ := middleware.AdminFromContext(r.Context())
	if err := h.courseService.DeleteCourse(r.Context(), id); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	reqLogger := middleware.RequestLogger(r.Context(), h.logger)
	reqLogger.Info().Str("admin", admin).Int64("course_id", id).Msg("Course deleted via API")
	w.WriteHeader(http.StatusNoContent)
}

func (h *CourseHandler) streamVideo(w http.ResponseWriter, r *http.Request) {
	id, _, _ := parseCourseID(r.URL.Path)
	rc, name, err := h.courseService.OpenVideo(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	defer rc.Close()
	h.serveBlob(w, r, rc, name, "inline")
}

func (h *CourseHandler) downloadMaterial(w http.ResponseWriter, r *http.Request) {
	id, _, _ := parseCourseID(r.URL.Path)
	rc, name, err := h.courseService.OpenMaterial(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	defer rc.Close()
	h.serveBlob(w, r, rc, name, "attachment")
}

func (h *CourseHandler) donationQR(w http.ResponseWriter, r *http.Request) {
	id, _, _ := parseCourseID(r.URL.Path)
	entry, err := h.courseService.GetCourse(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if !entry.Course.HasDonationQR() {
		writeError(w, http.StatusNotFound, "Course has no donation QR")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(entry.Course.DonationQR)
}

// serveBlob supports range requests when the store hands back a seekable
// reader (the filesystem store does, S3 bodies do not).
func (h *CourseHandler) serveBlob(w http.ResponseWriter, r *http.Request, rc io.ReadCloser, name, disposition string) {
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": name}))
	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, name, time.Time{}, rs)
		return
	}
	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if _, err := io.Copy(w, rc); err != nil {
		reqLogger := middleware.RequestLogger(r.Context(), h.logger)
		reqLogger.Warn().Err(err).Str("file", name).Msg("Failed to stream file")
	}
}

// formUpload reads an optional file part into memory. A missing part yields
// nil.
func formUpload(r *http.Request, field string) (*model.Upload, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()
	return readUpload(file, header)
}

func readUpload(file multipart.File, header *multipart.FileHeader) (*model.Upload, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	return &model.Upload{Filename: header.Filename, Data: data}, nil
}
