package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"edupro/internal/config"
	"edupro/internal/model"
	"edupro/internal/repository"
	"edupro/internal/storage"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu       sync.Mutex
	topics   []string
	payloads [][]byte
	err      error
}

func (p *recordingPublisher) Publish(ctx context.Context, topic string, payload []byte) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
	return "msg-1", p.err
}

// flakyStore fails Put, Move or Delete for keys in the given directory.
type flakyStore struct {
	storage.BlobStore
	failPutDir    string
	failMoveDir   string
	failDeleteDir string
}

func (f *flakyStore) Move(ctx context.Context, src, dst string) error {
	if f.failMoveDir != "" && filepath.Dir(src) == f.failMoveDir {
		return errors.New("permission denied")
	}
	return f.BlobStore.Move(ctx, src, dst)
}

func (f *flakyStore) Put(ctx context.Context, key string, data []byte) error {
	if f.failPutDir != "" && filepath.Dir(key) == f.failPutDir {
		return errors.New("disk full")
	}
	return f.BlobStore.Put(ctx, key, data)
}

func (f *flakyStore) Delete(ctx context.Context, key string) error {
	if f.failDeleteDir != "" && filepath.Dir(key) == f.failDeleteDir {
		return errors.New("permission denied")
	}
	return f.BlobStore.Delete(ctx, key)
}

type fixture struct {
	svc       *courseService
	repo      repository.CourseRepository
	blobs     *flakyStore
	publisher *recordingPublisher
	uploadDir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{DBDriver: config.DriverSQLite, DBPath: filepath.Join(dir, "courses.db")}
	db, err := repository.Open(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	uploadDir := filepath.Join(dir, "uploads")
	fs, err := storage.NewFSStore(uploadDir, VideosDir, MaterialsDir)
	require.NoError(t, err)

	repo := repository.NewCourseRepo(db, cfg.DBDriver, zerolog.Nop())
	blobs := &flakyStore{BlobStore: fs}
	pub := &recordingPublisher{}
	svc := NewCourseService(repo, blobs, pub, "course-events", NewValidator(), zerolog.Nop()).(*courseService)
	svc.newPIN = func() (string, error) { return "0420", nil }
	svc.now = func() time.Time { return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC) }

	return &fixture{svc: svc, repo: repo, blobs: blobs, publisher: pub, uploadDir: uploadDir}
}

func (f *fixture) files(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(f.uploadDir, dir))
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func algebraInput() NewCourseInput {
	return NewCourseInput{
		Title:           "Algebra I",
		Description:     "Linear equations and inequalities",
		InstructorName:  "Ada",
		InstructorEmail: "a@x.com",
		ContentTitle:    "Lesson 1",
		Video:           &model.Upload{Filename: "lesson.mp4", Data: []byte("video")},
		Material:        &model.Upload{Filename: "notes.pdf", Data: []byte("pdf")},
	}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.Black)
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestAddCourse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.AddCourse(ctx, algebraInput())
	require.NoError(t, err)
	assert.Equal(t, "0420", created.DeletionPIN)
	assert.NotZero(t, created.Course.ID)
	assert.Equal(t, "videos/1_lesson.mp4", created.Content.VideoPath)
	require.True(t, created.Content.HasMaterial())
	assert.Equal(t, "materials/1_notes.pdf", *created.Content.MaterialPath)

	assert.Equal(t, []string{"1_lesson.mp4"}, f.files(t, VideosDir))
	assert.Equal(t, []string{"1_notes.pdf"}, f.files(t, MaterialsDir))

	courses, err := f.svc.ListCourses(ctx)
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "Algebra I", courses[0].Title)

	require.Len(t, f.publisher.topics, 1)
	assert.Equal(t, "course-events", f.publisher.topics[0])
	assert.Contains(t, string(f.publisher.payloads[0]), `"type":"course.created"`)
}

func TestAddCourseWithoutMaterial(t *testing.T) {
	f := newFixture(t)
	in := algebraInput()
	in.Material = &model.Upload{Filename: "", Data: nil}

	created, err := f.svc.AddCourse(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, created.Content.HasMaterial())
	assert.Empty(t, f.files(t, MaterialsDir))
}

func TestAddCourseDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddCourse(ctx, algebraInput())
	require.NoError(t, err)

	again := algebraInput()
	again.Title = "  Algebra I "
	again.Video = &model.Upload{Filename: "other.mp4", Data: []byte("other")}
	_, err = f.svc.AddCourse(ctx, again)
	assert.ErrorIs(t, err, ErrDuplicateCourse)

	courses, err := f.svc.ListCourses(ctx)
	require.NoError(t, err)
	assert.Len(t, courses, 1)
	assert.Equal(t, []string{"1_lesson.mp4"}, f.files(t, VideosDir))

	// Same title under another instructor is a different course.
	other := algebraInput()
	other.InstructorEmail = "b@x.com"
	_, err = f.svc.AddCourse(ctx, other)
	require.NoError(t, err)
}

func TestAddCourseValidation(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(in *NewCourseInput)
		wantMissing []string
		wantInvalid []string
	}{
		{
			name: "missing fields",
			mutate: func(in *NewCourseInput) {
				in.Title = "   "
				in.InstructorEmail = ""
				in.Video = nil
			},
			wantMissing: []string{"title", "instructor_email", "video"},
		},
		{
			name:        "bad email",
			mutate:      func(in *NewCourseInput) { in.InstructorEmail = "not-an-email" },
			wantInvalid: []string{"instructor_email"},
		},
		{
			name:        "bad video extension",
			mutate:      func(in *NewCourseInput) { in.Video.Filename = "lesson.exe" },
			wantInvalid: []string{"video"},
		},
		{
			name:        "bad material extension",
			mutate:      func(in *NewCourseInput) { in.Material.Filename = "notes.zip" },
			wantInvalid: []string{"material"},
		},
		{
			name: "bad qr extension",
			mutate: func(in *NewCourseInput) {
				in.DonationQR = &model.Upload{Filename: "qr.gif", Data: []byte("gif")}
			},
			wantInvalid: []string{"donation_qr"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			in := algebraInput()
			tt.mutate(&in)

			_, err := f.svc.AddCourse(context.Background(), in)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantMissing, verr.Missing)
			assert.Equal(t, tt.wantInvalid, verr.Invalid)

			courses, err := f.svc.ListCourses(context.Background())
			require.NoError(t, err)
			assert.Empty(t, courses)
			assert.Empty(t, f.files(t, VideosDir))
		})
	}
}

func TestAddCourseStorageFailureLeavesNothing(t *testing.T) {
	f := newFixture(t)
	f.blobs.failPutDir = MaterialsDir

	_, err := f.svc.AddCourse(context.Background(), algebraInput())
	var serr *StorageError
	require.ErrorAs(t, err, &serr)

	courses, err := f.svc.ListCourses(context.Background())
	require.NoError(t, err)
	assert.Empty(t, courses)
	assert.Empty(t, f.files(t, VideosDir))
	assert.Empty(t, f.files(t, MaterialsDir))
	assert.Empty(t, f.publisher.topics)
}

func TestAddCourseDonationQR(t *testing.T) {
	f := newFixture(t)
	in := algebraInput()
	in.DonationQR = &model.Upload{Filename: "qr.PNG", Data: pngBytes(t, 1024, 600)}

	created, err := f.svc.AddCourse(context.Background(), in)
	require.NoError(t, err)
	require.True(t, created.Course.HasDonationQR())

	entry, err := f.svc.GetCourse(context.Background(), created.Course.ID)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(entry.Course.DonationQR))
	require.NoError(t, err)
	assert.Equal(t, 512, img.Bounds().Dx())
	assert.Equal(t, 300, img.Bounds().Dy())
}

func TestAddCourseCorruptDonationQR(t *testing.T) {
	f := newFixture(t)
	in := algebraInput()
	in.DonationQR = &model.Upload{Filename: "qr.png", Data: []byte("not an image")}

	_, err := f.svc.AddCourse(context.Background(), in)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"donation_qr"}, verr.Invalid)
	assert.Empty(t, f.files(t, VideosDir))
}

func TestDeleteCourse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.AddCourse(ctx, algebraInput())
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteCourse(ctx, created.Course.ID))
	assert.Empty(t, f.files(t, VideosDir))
	assert.Empty(t, f.files(t, MaterialsDir))
	assert.Empty(t, f.files(t, filepath.Join(TrashDir, VideosDir)))
	assert.Empty(t, f.files(t, filepath.Join(TrashDir, MaterialsDir)))

	_, err = f.svc.GetCourse(ctx, created.Course.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, f.svc.DeleteCourse(ctx, created.Course.ID), ErrNotFound)

	require.Len(t, f.publisher.payloads, 2)
	assert.Contains(t, string(f.publisher.payloads[1]), `"type":"course.deleted"`)
}

func TestDeleteCourseFileFailureKeepsCourseIntact(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.AddCourse(ctx, algebraInput())
	require.NoError(t, err)

	f.blobs.failMoveDir = MaterialsDir
	err = f.svc.DeleteCourse(ctx, created.Course.ID)
	var serr *StorageError
	require.ErrorAs(t, err, &serr)

	entry, err := f.svc.GetCourse(ctx, created.Course.ID)
	require.NoError(t, err)
	require.NotNil(t, entry.Content)
	assert.Equal(t, "Lesson 1", entry.Content.Title)

	assert.Equal(t, []string{"1_lesson.mp4"}, f.files(t, VideosDir))
	assert.Equal(t, []string{"1_notes.pdf"}, f.files(t, MaterialsDir))
	rc, _, err := f.svc.OpenVideo(ctx, created.Course.ID)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "video", string(data))

	f.blobs.failMoveDir = ""
	require.NoError(t, f.svc.DeleteCourse(ctx, created.Course.ID))
	assert.Empty(t, f.files(t, VideosDir))
}

func TestDeleteCoursePurgeFailureStillDeletes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.AddCourse(ctx, algebraInput())
	require.NoError(t, err)

	f.blobs.failDeleteDir = filepath.Join(TrashDir, MaterialsDir)
	require.NoError(t, f.svc.DeleteCourse(ctx, created.Course.ID))

	_, err = f.svc.GetCourse(ctx, created.Course.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, f.files(t, VideosDir))
	assert.Empty(t, f.files(t, MaterialsDir))
	assert.Empty(t, f.files(t, filepath.Join(TrashDir, VideosDir)))
}

func TestSearchCourses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := algebraInput()
	in.Title = "Intro to Python"
	_, err := f.svc.AddCourse(ctx, in)
	require.NoError(t, err)

	courses, performed, err := f.svc.SearchCourses(ctx, "PYTHON")
	require.NoError(t, err)
	assert.True(t, performed)
	require.Len(t, courses, 1)
	assert.Equal(t, "Intro to Python", courses[0].Title)

	courses, performed, err = f.svc.SearchCourses(ctx, "   ")
	require.NoError(t, err)
	assert.False(t, performed)
	assert.Empty(t, courses)
}

func TestOpenVideoAndMaterial(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.AddCourse(ctx, algebraInput())
	require.NoError(t, err)

	rc, name, err := f.svc.OpenVideo(ctx, created.Course.ID)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "lesson.mp4", name)
	assert.Equal(t, "video", string(data))

	rc, name, err = f.svc.OpenMaterial(ctx, created.Course.ID)
	require.NoError(t, err)
	_ = rc.Close()
	assert.Equal(t, "notes.pdf", name)

	content, err := f.svc.GetContent(ctx, created.Course.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lesson 1", content.Title)
	_, err = f.svc.GetContent(ctx, created.Course.ID+1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = f.svc.OpenVideo(ctx, created.Course.ID+1)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, os.Remove(filepath.Join(f.uploadDir, VideosDir, "1_lesson.mp4")))
	_, _, err = f.svc.OpenVideo(ctx, created.Course.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPublishFailureDoesNotFailAdd(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("unavailable")

	_, err := f.svc.AddCourse(context.Background(), algebraInput())
	require.NoError(t, err)
}

func TestBlobKeyAndOriginalFilename(t *testing.T) {
	assert.Equal(t, "videos/12_intro.mp4", blobKey(VideosDir, 12, "intro.mp4"))
	assert.Equal(t, "intro.mp4", originalFilename(12, "videos/12_intro.mp4"))
	assert.Equal(t, "3_x.pdf", originalFilename(12, "materials/3_x.pdf"))
}
