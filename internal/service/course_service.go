package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"edupro/internal/model"
	"edupro/internal/pubsub"
	"edupro/internal/repository"
	"edupro/internal/storage"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// Blob key prefixes below the upload root.
const (
	VideosDir    = "videos"
	MaterialsDir = "materials"
	TrashDir     = "trash"
)

var (
	videoExts    = map[string]bool{".mp4": true, ".mov": true, ".avi": true}
	materialExts = map[string]bool{".pdf": true, ".doc": true, ".docx": true}
	qrExts       = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".webp": true}
)

// NewCourseInput is the admin's add-course submission.
type NewCourseInput struct {
	Title           string        `json:"title" validate:"required"`
	Description     string        `json:"description" validate:"required"`
	InstructorName  string        `json:"instructor_name" validate:"required"`
	InstructorEmail string        `json:"instructor_email" validate:"required,email"`
	ContentTitle    string        `json:"content_title" validate:"required"`
	Video           *model.Upload `json:"video" validate:"required"`
	Material        *model.Upload `json:"material"`
	DonationQR      *model.Upload `json:"donation_qr"`
}

func (in *NewCourseInput) trim() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.InstructorName = strings.TrimSpace(in.InstructorName)
	in.InstructorEmail = strings.TrimSpace(in.InstructorEmail)
	in.ContentTitle = strings.TrimSpace(in.ContentTitle)
	if in.Video != nil && len(in.Video.Data) == 0 {
		in.Video = nil
	}
	if in.Material != nil && len(in.Material.Data) == 0 {
		in.Material = nil
	}
	if in.DonationQR != nil && len(in.DonationQR.Data) == 0 {
		in.DonationQR = nil
	}
}

// CourseCreated is the result of a successful AddCourse. DeletionPIN is only
// ever handed out here.
type CourseCreated struct {
	Course      *model.Course
	Content     *model.CourseContent
	DeletionPIN string
}

// CourseService defines the interface for course operations
type CourseService interface {
	// AddCourse stores a course, its content row and its files as one unit.
	AddCourse(ctx context.Context, in NewCourseInput) (*CourseCreated, error)
	// DeleteCourse removes the course files and rows.
	DeleteCourse(ctx context.Context, courseID int64) error
	ListCourses(ctx context.Context) ([]model.Course, error)
	ListCatalog(ctx context.Context) ([]model.CatalogEntry, error)
	// SearchCourses reports performed == false for a blank query.
	SearchCourses(ctx context.Context, query string) (courses []model.Course, performed bool, err error)
	GetCourse(ctx context.Context, courseID int64) (*model.CatalogEntry, error)
	// GetContent returns ErrNotFound when the course has no content row.
	GetContent(ctx context.Context, courseID int64) (*model.CourseContent, error)
	OpenVideo(ctx context.Context, courseID int64) (io.ReadCloser, string, error)
	OpenMaterial(ctx context.Context, courseID int64) (io.ReadCloser, string, error)
}

// courseService is the implementation of CourseService
type courseService struct {
	repo      repository.CourseRepository
	blobs     storage.BlobStore
	publisher pubsub.Publisher
	topic     string
	validate  *validator.Validate
	logger    zerolog.Logger

	now    func() time.Time
	newPIN func() (string, error)
}

// NewCourseService creates a new CourseService. An empty topic disables
// event publishing.
func NewCourseService(
	repo repository.CourseRepository,
	blobs storage.BlobStore,
	publisher pubsub.Publisher,
	topic string,
	validate *validator.Validate,
	logger zerolog.Logger,
) CourseService {
	return &courseService{
		repo:      repo,
		blobs:     blobs,
		publisher: publisher,
		topic:     topic,
		validate:  validate,
		logger:    logger.With().Str("service", "CourseService").Logger(),
		now:       time.Now,
		newPIN:    GeneratePIN,
	}
}

func (s *courseService) AddCourse(ctx context.Context, in NewCourseInput) (*CourseCreated, error) {
	in.trim()
	if err := s.validateInput(&in); err != nil {
		return nil, err
	}

	pin, err := s.newPIN()
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsByTitleAndEmail(ctx, in.Title, in.InstructorEmail)
	if err != nil {
		return nil, &StorageError{Op: "check course uniqueness", Err: err}
	}
	if exists {
		return nil, ErrDuplicateCourse
	}

	var qr []byte
	if in.DonationQR != nil {
		qr, err = NormalizeDonationQR(in.DonationQR)
		if err != nil {
			s.logger.Warn().Err(err).Str("filename", in.DonationQR.Filename).Msg("Rejected donation QR image")
			return nil, &ValidationError{Invalid: []string{"donation_qr"}}
		}
	}

	course := &model.Course{
		Title:           in.Title,
		Description:     in.Description,
		InstructorEmail: in.InstructorEmail,
		InstructorName:  in.InstructorName,
		DeletionPIN:     pin,
		DonationQR:      qr,
		CreatedAt:       s.now().UTC(),
	}

	var (
		content *model.CourseContent
		written []string
	)
	err = s.repo.WithTx(ctx, func(tx repository.CourseRepository) error {
		if err := tx.CreateCourse(ctx, course); err != nil {
			return err
		}

		videoKey := blobKey(VideosDir, course.ID, in.Video.BaseName())
		if err := s.blobs.Put(ctx, videoKey, in.Video.Data); err != nil {
			return &StorageError{Op: "write video", Err: err}
		}
		written = append(written, videoKey)

		var materialKey *string
		if in.Material != nil {
			key := blobKey(MaterialsDir, course.ID, in.Material.BaseName())
			if err := s.blobs.Put(ctx, key, in.Material.Data); err != nil {
				return &StorageError{Op: "write material", Err: err}
			}
			written = append(written, key)
			materialKey = &key
		}

		content = &model.CourseContent{
			CourseID:     course.ID,
			VideoPath:    videoKey,
			MaterialPath: materialKey,
			Title:        in.ContentTitle,
		}
		return tx.CreateContent(ctx, content)
	})
	if err != nil {
		s.removeBlobs(context.WithoutCancel(ctx), written)
		if errors.Is(err, ErrDuplicateCourse) {
			return nil, ErrDuplicateCourse
		}
		s.logger.Error().Err(err).Str("title", in.Title).Msg("Failed to add course")
		var storageErr *StorageError
		if errors.As(err, &storageErr) {
			return nil, storageErr
		}
		return nil, &StorageError{Op: "create course", Err: err}
	}

	s.logger.Info().Int64("course_id", course.ID).Str("title", course.Title).Msg("Course added")
	s.publish(ctx, pubsub.EventCourseCreated, course)

	return &CourseCreated{Course: course, Content: content, DeletionPIN: pin}, nil
}

func (s *courseService) DeleteCourse(ctx context.Context, courseID int64) error {
	course, err := s.repo.GetCourseByID(ctx, courseID)
	if err != nil {
		return &StorageError{Op: "load course", Err: err}
	}
	if course == nil {
		return ErrNotFound
	}

	// Files are moved aside while the rows are deleted, put back if anything
	// fails and purged only after commit.
	var trashed map[string]string
	err = s.repo.WithTx(ctx, func(tx repository.CourseRepository) error {
		content, err := tx.GetContent(ctx, courseID)
		if err != nil {
			return err
		}
		if err := tx.DeleteCourse(ctx, courseID); err != nil {
			return err
		}
		trashed, err = s.trashBlobs(ctx, contentKeys(content))
		return err
	})
	if err != nil {
		s.restoreBlobs(context.WithoutCancel(ctx), trashed)
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		s.logger.Error().Err(err).Int64("course_id", courseID).Msg("Failed to delete course")
		var storageErr *StorageError
		if errors.As(err, &storageErr) {
			return storageErr
		}
		return &StorageError{Op: "delete course", Err: err}
	}
	s.purgeBlobs(context.WithoutCancel(ctx), trashed)

	s.logger.Info().Int64("course_id", courseID).Msg("Course deleted")
	s.publish(ctx, pubsub.EventCourseDeleted, course)
	return nil
}

func (s *courseService) ListCourses(ctx context.Context) ([]model.Course, error) {
	courses, err := s.repo.ListCourses(ctx)
	if err != nil {
		return nil, &StorageError{Op: "list courses", Err: err}
	}
	return courses, nil
}

func (s *courseService) ListCatalog(ctx context.Context) ([]model.CatalogEntry, error) {
	entries, err := s.repo.ListCatalog(ctx)
	if err != nil {
		return nil, &StorageError{Op: "list catalog", Err: err}
	}
	return entries, nil
}

func (s *courseService) SearchCourses(ctx context.Context, query string) ([]model.Course, bool, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, false, nil
	}
	courses, err := s.repo.SearchCourses(ctx, query)
	if err != nil {
		return nil, true, &StorageError{Op: "search courses", Err: err}
	}
	return courses, true, nil
}

func (s *courseService) GetCourse(ctx context.Context, courseID int64) (*model.CatalogEntry, error) {
	course, err := s.repo.GetCourseByID(ctx, courseID)
	if err != nil {
		return nil, &StorageError{Op: "load course", Err: err}
	}
	if course == nil {
		return nil, ErrNotFound
	}
	content, err := s.repo.GetContent(ctx, courseID)
	if err != nil {
		return nil, &StorageError{Op: "load course content", Err: err}
	}
	return &model.CatalogEntry{Course: *course, Content: content}, nil
}

func (s *courseService) GetContent(ctx context.Context, courseID int64) (*model.CourseContent, error) {
	return s.contentOf(ctx, courseID)
}

func (s *courseService) OpenVideo(ctx context.Context, courseID int64) (io.ReadCloser, string, error) {
	content, err := s.contentOf(ctx, courseID)
	if err != nil {
		return nil, "", err
	}
	return s.openBlob(ctx, courseID, content.VideoPath)
}

func (s *courseService) OpenMaterial(ctx context.Context, courseID int64) (io.ReadCloser, string, error) {
	content, err := s.contentOf(ctx, courseID)
	if err != nil {
		return nil, "", err
	}
	if !content.HasMaterial() {
		return nil, "", ErrNotFound
	}
	return s.openBlob(ctx, courseID, *content.MaterialPath)
}

func (s *courseService) contentOf(ctx context.Context, courseID int64) (*model.CourseContent, error) {
	content, err := s.repo.GetContent(ctx, courseID)
	if err != nil {
		return nil, &StorageError{Op: "load course content", Err: err}
	}
	if content == nil {
		return nil, ErrNotFound
	}
	return content, nil
}

func (s *courseService) openBlob(ctx context.Context, courseID int64, key string) (io.ReadCloser, string, error) {
	rc, err := s.blobs.Open(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) {
			s.logger.Warn().Int64("course_id", courseID).Str("key", key).Msg("Course file missing from storage")
			return nil, "", ErrNotFound
		}
		return nil, "", &StorageError{Op: "open file", Err: err}
	}
	return rc, originalFilename(courseID, key), nil
}

func (s *courseService) validateInput(in *NewCourseInput) error {
	verr := &ValidationError{}
	if err := s.validate.Struct(in); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("failed to validate course input: %w", err)
		}
		for _, fe := range fieldErrs {
			if fe.Tag() == "required" {
				verr.Missing = append(verr.Missing, fe.Field())
			} else {
				verr.Invalid = append(verr.Invalid, fe.Field())
			}
		}
	}
	if in.Video != nil && (in.Video.BaseName() == "" || !videoExts[in.Video.Ext()]) {
		verr.Invalid = append(verr.Invalid, "video")
	}
	if in.Material != nil && (in.Material.BaseName() == "" || !materialExts[in.Material.Ext()]) {
		verr.Invalid = append(verr.Invalid, "material")
	}
	if in.DonationQR != nil && !qrExts[in.DonationQR.Ext()] {
		verr.Invalid = append(verr.Invalid, "donation_qr")
	}
	if verr.empty() {
		return nil
	}
	return verr
}

// trashBlobs moves each key under TrashDir. Missing files are skipped. On
// failure the keys already moved are returned so the caller can restore them.
func (s *courseService) trashBlobs(ctx context.Context, keys []string) (map[string]string, error) {
	moved := make(map[string]string, len(keys))
	for _, key := range keys {
		tomb := path.Join(TrashDir, key)
		if err := s.blobs.Move(ctx, key, tomb); err != nil {
			if errors.Is(err, storage.ErrBlobNotFound) {
				continue
			}
			return moved, &StorageError{Op: "delete file", Err: err}
		}
		moved[key] = tomb
	}
	return moved, nil
}

func (s *courseService) restoreBlobs(ctx context.Context, trashed map[string]string) {
	for key, tomb := range trashed {
		if err := s.blobs.Move(ctx, tomb, key); err != nil {
			s.logger.Error().Err(err).Str("key", key).Msg("Failed to restore course file")
		}
	}
}

// purgeBlobs runs after commit. A leftover tombstone is logged, not returned.
func (s *courseService) purgeBlobs(ctx context.Context, trashed map[string]string) {
	for key, tomb := range trashed {
		if err := s.blobs.Delete(ctx, tomb); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("Failed to purge deleted course file")
		}
	}
}

func (s *courseService) removeBlobs(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := s.blobs.Delete(ctx, key); err != nil {
			s.logger.Error().Err(err).Str("key", key).Msg("Failed to clean up uploaded file")
		}
	}
}

func (s *courseService) publish(ctx context.Context, eventType string, course *model.Course) {
	if s.topic == "" {
		return
	}
	payload, err := pubsub.CourseEvent{
		Type:       eventType,
		CourseID:   course.ID,
		Title:      course.Title,
		OccurredAt: s.now().UTC(),
	}.Marshal()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to marshal course event")
		return
	}
	if _, err := s.publisher.Publish(ctx, s.topic, payload); err != nil {
		s.logger.Warn().Err(err).Str("topic", s.topic).Str("event", eventType).Msg("Failed to publish course event")
	}
}

// blobKey namespaces a file by course id: "videos/12_intro.mp4".
func blobKey(dir string, courseID int64, filename string) string {
	return path.Join(dir, fmt.Sprintf("%d_%s", courseID, filename))
}

func originalFilename(courseID int64, key string) string {
	return strings.TrimPrefix(path.Base(key), fmt.Sprintf("%d_", courseID))
}

func contentKeys(content *model.CourseContent) []string {
	if content == nil {
		return nil
	}
	keys := []string{content.VideoPath}
	if content.HasMaterial() {
		keys = append(keys, *content.MaterialPath)
	}
	return keys
}
