package model

import "time"

// Course is a catalog entry. DonationQR holds PNG bytes when present.
type Course struct {
	ID              int64     `db:"id" json:"id"`
	Title           string    `db:"title" json:"title"`
	Description     string    `db:"description" json:"description"`
	InstructorEmail string    `db:"instructor_email" json:"instructor_email"`
	InstructorName  string    `db:"instructor_name" json:"instructor_name"`
	DeletionPIN     string    `db:"deletion_pin" json:"-"`
	DonationQR      []byte    `db:"donation_qr" json:"-"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// HasDonationQR reports whether the course carries a donation image.
func (c *Course) HasDonationQR() bool {
	return len(c.DonationQR) > 0
}

// CourseContent is the uploaded video/material pair of a course.
// Paths are blob keys relative to the upload root.
type CourseContent struct {
	ID           int64   `db:"id" json:"id"`
	CourseID     int64   `db:"course_id" json:"course_id"`
	VideoPath    string  `db:"video_path" json:"video_path"`
	MaterialPath *string `db:"material_path" json:"material_path,omitempty"`
	Title        string  `db:"title" json:"title"`
}

// HasMaterial reports whether a material file was uploaded.
func (c *CourseContent) HasMaterial() bool {
	return c.MaterialPath != nil && *c.MaterialPath != ""
}

// CatalogEntry pairs a course with its content; Content is nil when the
// course has none.
type CatalogEntry struct {
	Course  Course
	Content *CourseContent
}
