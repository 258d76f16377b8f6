package repository

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"edupro/internal/config"
	"edupro/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) (*sql.DB, CourseRepository) {
	t.Helper()
	cfg := &config.Config{
		DBDriver: config.DriverSQLite,
		DBPath:   filepath.Join(t.TempDir(), "courses.db"),
	}
	db, err := Open(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, NewCourseRepo(db, cfg.DBDriver, zerolog.Nop())
}

func newCourse(title, email string, createdAt time.Time) *model.Course {
	return &model.Course{
		Title:           title,
		Description:     "About " + title,
		InstructorEmail: email,
		InstructorName:  "Instructor",
		DeletionPIN:     "0420",
		CreatedAt:       createdAt,
	}
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestEnsureSchemaIsIdempotent(t *testing.T) {
	db, _ := openTestDB(t)
	require.NoError(t, EnsureSchema(context.Background(), db, config.DriverSQLite))
	require.NoError(t, EnsureSchema(context.Background(), db, config.DriverSQLite))
}

func TestCreateAndGetCourse(t *testing.T) {
	_, repo := openTestDB(t)
	ctx := context.Background()

	c := newCourse("Algebra I", "a@x.com", time.Now())
	c.DonationQR = []byte{0x89, 'P', 'N', 'G'}
	require.NoError(t, repo.CreateCourse(ctx, c))
	require.NotZero(t, c.ID)

	got, err := repo.GetCourseByID(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Algebra I", got.Title)
	assert.Equal(t, "a@x.com", got.InstructorEmail)
	assert.Equal(t, "0420", got.DeletionPIN)
	assert.Equal(t, c.DonationQR, got.DonationQR)
	assert.WithinDuration(t, c.CreatedAt, got.CreatedAt, time.Second)

	missing, err := repo.GetCourseByID(ctx, c.ID+100)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCreateCourseDuplicate(t *testing.T) {
	_, repo := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateCourse(ctx, newCourse("Algebra I", "a@x.com", time.Now())))

	exists, err := repo.ExistsByTitleAndEmail(ctx, "Algebra I", "a@x.com")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsByTitleAndEmail(ctx, "Algebra I", "b@x.com")
	require.NoError(t, err)
	assert.False(t, exists)

	err = repo.CreateCourse(ctx, newCourse("Algebra I", "a@x.com", time.Now()))
	assert.ErrorIs(t, err, ErrDuplicateCourse)
}

func TestListCoursesNewestFirst(t *testing.T) {
	_, repo := openTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.CreateCourse(ctx, newCourse("Old", "a@x.com", base)))
	require.NoError(t, repo.CreateCourse(ctx, newCourse("New", "a@x.com", base.Add(time.Hour))))
	require.NoError(t, repo.CreateCourse(ctx, newCourse("Middle", "a@x.com", base.Add(time.Minute))))

	courses, err := repo.ListCourses(ctx)
	require.NoError(t, err)
	require.Len(t, courses, 3)
	assert.Equal(t, "New", courses[0].Title)
	assert.Equal(t, "Middle", courses[1].Title)
	assert.Equal(t, "Old", courses[2].Title)
}

func TestListCoursesEmpty(t *testing.T) {
	_, repo := openTestDB(t)
	courses, err := repo.ListCourses(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, courses)
	assert.Empty(t, courses)
}

func TestSearchCourses(t *testing.T) {
	_, repo := openTestDB(t)
	ctx := context.Background()

	py := newCourse("Intro to Python", "a@x.com", time.Now())
	require.NoError(t, repo.CreateCourse(ctx, py))
	golang := newCourse("Concurrency", "a@x.com", time.Now())
	golang.Description = "Goroutines and channels in Go"
	require.NoError(t, repo.CreateCourse(ctx, golang))
	pct := newCourse("100% Fractions", "a@x.com", time.Now())
	pct.Description = ""
	require.NoError(t, repo.CreateCourse(ctx, pct))

	tests := []struct {
		query string
		want  []string
	}{
		{query: "PYTHON", want: []string{"Intro to Python"}},
		{query: "goroutines", want: []string{"Concurrency"}},
		{query: "%", want: []string{"100% Fractions"}},
		{query: "_", want: nil},
		{query: "rust", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			courses, err := repo.SearchCourses(ctx, tt.query)
			require.NoError(t, err)
			var titles []string
			for _, c := range courses {
				titles = append(titles, c.Title)
			}
			assert.Equal(t, tt.want, titles)
		})
	}
}

func TestSearchCoursesUnicodeCase(t *testing.T) {
	_, repo := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateCourse(ctx, newCourse("École de Python", "a@x.com", time.Now())))
	german := newCourse("Deutsch", "a@x.com", time.Now())
	german.Description = "ÜBUNGEN zur Grammatik"
	require.NoError(t, repo.CreateCourse(ctx, german))

	for _, q := range []string{"école", "ÉCOLE", "École", "cole de"} {
		courses, err := repo.SearchCourses(ctx, q)
		require.NoError(t, err)
		require.Len(t, courses, 1, q)
		assert.Equal(t, "École de Python", courses[0].Title)
	}

	courses, err := repo.SearchCourses(ctx, "übungen")
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "Deutsch", courses[0].Title)
}

func TestContentAndCatalog(t *testing.T) {
	_, repo := openTestDB(t)
	ctx := context.Background()

	withContent := newCourse("Algebra I", "a@x.com", time.Now())
	require.NoError(t, repo.CreateCourse(ctx, withContent))
	material := "materials/1_notes.pdf"
	cc := &model.CourseContent{
		CourseID:     withContent.ID,
		VideoPath:    "videos/1_lesson.mp4",
		MaterialPath: &material,
		Title:        "Lesson 1",
	}
	require.NoError(t, repo.CreateContent(ctx, cc))
	require.NotZero(t, cc.ID)

	bare := newCourse("Geometry", "a@x.com", time.Now().Add(time.Minute))
	require.NoError(t, repo.CreateCourse(ctx, bare))

	got, err := repo.GetContent(ctx, withContent.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "videos/1_lesson.mp4", got.VideoPath)
	require.True(t, got.HasMaterial())
	assert.Equal(t, material, *got.MaterialPath)

	none, err := repo.GetContent(ctx, bare.ID)
	require.NoError(t, err)
	assert.Nil(t, none)

	catalog, err := repo.ListCatalog(ctx)
	require.NoError(t, err)
	require.Len(t, catalog, 2)
	assert.Equal(t, "Geometry", catalog[0].Course.Title)
	assert.Nil(t, catalog[0].Content)
	require.NotNil(t, catalog[1].Content)
	assert.Equal(t, "Lesson 1", catalog[1].Content.Title)
}

func TestContentIsOneToOne(t *testing.T) {
	_, repo := openTestDB(t)
	ctx := context.Background()

	c := newCourse("Algebra I", "a@x.com", time.Now())
	require.NoError(t, repo.CreateCourse(ctx, c))
	require.NoError(t, repo.CreateContent(ctx, &model.CourseContent{CourseID: c.ID, VideoPath: "videos/a.mp4", Title: "A"}))
	assert.Error(t, repo.CreateContent(ctx, &model.CourseContent{CourseID: c.ID, VideoPath: "videos/b.mp4", Title: "B"}))
}

func TestDeleteCourse(t *testing.T) {
	db, repo := openTestDB(t)
	ctx := context.Background()

	c := newCourse("Algebra I", "a@x.com", time.Now())
	require.NoError(t, repo.CreateCourse(ctx, c))
	require.NoError(t, repo.CreateContent(ctx, &model.CourseContent{CourseID: c.ID, VideoPath: "videos/a.mp4", Title: "A"}))

	require.NoError(t, repo.DeleteCourse(ctx, c.ID))
	assert.Equal(t, 0, countRows(t, db, "courses"))
	assert.Equal(t, 0, countRows(t, db, "course_content"))

	assert.ErrorIs(t, repo.DeleteCourse(ctx, c.ID), ErrNotFound)
}

func TestWithTxRollsBack(t *testing.T) {
	db, repo := openTestDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := repo.WithTx(ctx, func(tx CourseRepository) error {
		c := newCourse("Algebra I", "a@x.com", time.Now())
		if err := tx.CreateCourse(ctx, c); err != nil {
			return err
		}
		if err := tx.CreateContent(ctx, &model.CourseContent{CourseID: c.ID, VideoPath: "videos/a.mp4", Title: "A"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, countRows(t, db, "courses"))
	assert.Equal(t, 0, countRows(t, db, "course_content"))
}

func TestWithTxCommits(t *testing.T) {
	db, repo := openTestDB(t)
	ctx := context.Background()

	err := repo.WithTx(ctx, func(tx CourseRepository) error {
		return tx.CreateCourse(ctx, newCourse("Algebra I", "a@x.com", time.Now()))
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countRows(t, db, "courses"))
}

func TestRebind(t *testing.T) {
	pg := &courseRepo{driver: config.DriverPostgres}
	assert.Equal(t, "SELECT 1 WHERE a = $1 AND b = $2", pg.rebind("SELECT 1 WHERE a = ? AND b = ?"))

	lite := &courseRepo{driver: config.DriverSQLite}
	assert.Equal(t, "SELECT 1 WHERE a = ?", lite.rebind("SELECT 1 WHERE a = ?"))

	assert.Equal(t, "LOWER", pg.lowerFunc())
	assert.Equal(t, "go_lower", lite.lowerFunc())
}

func TestLikePattern(t *testing.T) {
	assert.Equal(t, `%python%`, likePattern("PYTHON"))
	assert.Equal(t, `%100\%%`, likePattern("100%"))
	assert.Equal(t, `%a\_b%`, likePattern("a_b"))
}

func TestPostgresRoundTrip(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set, skip postgres integration test")
	}

	ctx := context.Background()
	cfg := &config.Config{DBDriver: config.DriverPostgres, DBConnectionString: dsn}
	db, err := Open(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	defer db.Close()

	repo := NewCourseRepo(db, cfg.DBDriver, zerolog.Nop())
	title := "pg-" + time.Now().Format(time.RFC3339Nano)
	c := newCourse(title, "pg@x.com", time.Now())
	require.NoError(t, repo.CreateCourse(ctx, c))
	defer func() { _ = repo.DeleteCourse(ctx, c.ID) }()

	assert.ErrorIs(t, repo.CreateCourse(ctx, newCourse(title, "pg@x.com", time.Now())), ErrDuplicateCourse)

	found, err := repo.SearchCourses(ctx, title)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, c.ID, found[0].ID)
}
