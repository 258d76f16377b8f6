package dto

import (
	"time"

	"edupro/internal/model"
)

// CourseContentDTO describes the lesson attached to a course. File paths are
// not exposed; clients fetch binaries through the URLs.
type CourseContentDTO struct {
	ContentID   int64   `json:"content_id"`
	Title       string  `json:"title"`
	VideoURL    string  `json:"video_url"`
	MaterialURL *string `json:"material_url,omitempty"`
}

// CourseResponseDTO is returned in public API responses for courses
type CourseResponseDTO struct {
	CourseID       int64             `json:"course_id"`
	Title          string            `json:"title"`
	Description    string            `json:"description"`
	InstructorName string            `json:"instructor_name"`
	DonationQRURL  *string           `json:"donation_qr_url,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	Content        *CourseContentDTO `json:"content,omitempty"`
}

// AdminCourseDTO is a row of the admin management list.
type AdminCourseDTO struct {
	CourseID        int64     `json:"course_id"`
	Title           string    `json:"title"`
	InstructorName  string    `json:"instructor_name"`
	InstructorEmail string    `json:"instructor_email"`
	CreatedAt       time.Time `json:"created_at"`
}

// CourseListDTO wraps catalog and search results. Query and Searched are set
// only when a search was requested.
type CourseListDTO struct {
	Courses  []CourseResponseDTO `json:"courses"`
	Query    string              `json:"query,omitempty"`
	Searched bool                `json:"searched"`
}

// CourseCreatedDTO is returned once, on creation. The deletion PIN is not
// retrievable afterwards.
type CourseCreatedDTO struct {
	CourseID    int64  `json:"course_id"`
	ContentID   int64  `json:"content_id"`
	DeletionPIN string `json:"deletion_pin"`
}

func courseURL(courseID int64, suffix string) string {
	return "/v1/courses/" + itoa(courseID) + suffix
}

// NewCourseResponse builds the public view of a course and its content.
func NewCourseResponse(c model.Course, content *model.CourseContent) CourseResponseDTO {
	resp := CourseResponseDTO{
		CourseID:       c.ID,
		Title:          c.Title,
		Description:    c.Description,
		InstructorName: c.InstructorName,
		CreatedAt:      c.CreatedAt,
	}
	if c.HasDonationQR() {
		u := courseURL(c.ID, "/donation-qr")
		resp.DonationQRURL = &u
	}
	if content != nil {
		resp.Content = &CourseContentDTO{
			ContentID: content.ID,
			Title:     content.Title,
			VideoURL:  courseURL(c.ID, "/video"),
		}
		if content.HasMaterial() {
			u := courseURL(c.ID, "/material")
			resp.Content.MaterialURL = &u
		}
	}
	return resp
}

func NewAdminCourse(c model.Course) AdminCourseDTO {
	return AdminCourseDTO{
		CourseID:        c.ID,
		Title:           c.Title,
		InstructorName:  c.InstructorName,
		InstructorEmail: c.InstructorEmail,
		CreatedAt:       c.CreatedAt,
	}
}
