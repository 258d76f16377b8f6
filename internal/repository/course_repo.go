package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"edupro/internal/config"
	"edupro/internal/model"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

var (
	// ErrDuplicateCourse is returned when (title, instructor_email) is taken.
	ErrDuplicateCourse = errors.New("a course with this title already exists for this instructor")
	// ErrNotFound is returned when the referenced course does not exist.
	ErrNotFound = errors.New("course not found")
)

// CourseRepository defines the interface for interacting with course data
type CourseRepository interface {
	CreateCourse(ctx context.Context, c *model.Course) error
	CreateContent(ctx context.Context, cc *model.CourseContent) error
	ListCourses(ctx context.Context) ([]model.Course, error)
	ListCatalog(ctx context.Context) ([]model.CatalogEntry, error)
	SearchCourses(ctx context.Context, query string) ([]model.Course, error)
	GetCourseByID(ctx context.Context, courseID int64) (*model.Course, error)
	ExistsByTitleAndEmail(ctx context.Context, title, email string) (bool, error)
	GetContent(ctx context.Context, courseID int64) (*model.CourseContent, error)
	DeleteCourse(ctx context.Context, courseID int64) error
	// WithTx runs fn against a repository bound to one transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(repo CourseRepository) error) error
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type courseRepo struct {
	db     *sql.DB
	q      querier
	tx     *sql.Tx
	driver string
	logger zerolog.Logger
}

// NewCourseRepo creates a new CourseRepository
func NewCourseRepo(db *sql.DB, driver string, logger zerolog.Logger) CourseRepository {
	return &courseRepo{
		db:     db,
		q:      db,
		driver: driver,
		logger: logger.With().Str("repository", "CourseRepo").Logger(),
	}
}

const courseColumns = `id, title, description, instructor_email, instructor_name, deletion_pin, donation_qr, created_at`

// rebind turns ? placeholders into $n for postgres.
func (r *courseRepo) rebind(query string) string {
	if r.driver != config.DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

func (r *courseRepo) CreateCourse(ctx context.Context, c *model.Course) error {
	query := r.rebind(`
		INSERT INTO courses (title, description, instructor_email, instructor_name, deletion_pin, donation_qr, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)
	var qr any
	if c.HasDonationQR() {
		qr = c.DonationQR
	}
	err := r.q.QueryRowContext(ctx, query,
		c.Title, c.Description, c.InstructorEmail, c.InstructorName, c.DeletionPIN, qr, c.CreatedAt.UTC(),
	).Scan(&c.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateCourse
		}
		return fmt.Errorf("failed to insert course: %w", err)
	}
	return nil
}

func (r *courseRepo) CreateContent(ctx context.Context, cc *model.CourseContent) error {
	query := r.rebind(`
		INSERT INTO course_content (course_id, video_path, material_path, title)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`)
	if err := r.q.QueryRowContext(ctx, query, cc.CourseID, cc.VideoPath, cc.MaterialPath, cc.Title).Scan(&cc.ID); err != nil {
		return fmt.Errorf("failed to insert course content: %w", err)
	}
	return nil
}

func (r *courseRepo) ListCourses(ctx context.Context) ([]model.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses ORDER BY created_at DESC, id DESC`
	return r.queryCourses(ctx, query)
}

func (r *courseRepo) ListCatalog(ctx context.Context) ([]model.CatalogEntry, error) {
	query := `
		SELECT c.id, c.title, c.description, c.instructor_email, c.instructor_name,
		       c.deletion_pin, c.donation_qr, c.created_at,
		       cc.id, cc.video_path, cc.material_path, cc.title
		FROM courses c
		LEFT JOIN course_content cc ON cc.course_id = c.id
		ORDER BY c.created_at DESC, c.id DESC
	`
	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog: %w", err)
	}
	defer rows.Close()

	entries := []model.CatalogEntry{}
	for rows.Next() {
		var (
			entry        model.CatalogEntry
			description  sql.NullString
			contentID    sql.NullInt64
			videoPath    sql.NullString
			materialPath sql.NullString
			contentTitle sql.NullString
		)
		if err := rows.Scan(
			&entry.Course.ID,
			&entry.Course.Title,
			&description,
			&entry.Course.InstructorEmail,
			&entry.Course.InstructorName,
			&entry.Course.DeletionPIN,
			&entry.Course.DonationQR,
			&entry.Course.CreatedAt,
			&contentID,
			&videoPath,
			&materialPath,
			&contentTitle,
		); err != nil {
			return nil, fmt.Errorf("failed to scan catalog row: %w", err)
		}
		entry.Course.Description = description.String
		if contentID.Valid {
			entry.Content = &model.CourseContent{
				ID:        contentID.Int64,
				CourseID:  entry.Course.ID,
				VideoPath: videoPath.String,
				Title:     contentTitle.String,
			}
			if materialPath.Valid {
				path := materialPath.String
				entry.Content.MaterialPath = &path
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}

func (r *courseRepo) SearchCourses(ctx context.Context, query string) ([]model.Course, error) {
	pattern := likePattern(query)
	lower := r.lowerFunc()
	stmt := r.rebind(`SELECT ` + courseColumns + ` FROM courses
		WHERE ` + lower + `(title) LIKE ? ESCAPE '\'
		   OR ` + lower + `(COALESCE(description, '')) LIKE ? ESCAPE '\'
		ORDER BY created_at DESC, id DESC`)
	return r.queryCourses(ctx, stmt, pattern, pattern)
}

// lowerFunc is the Unicode-aware lower-case function of the dialect.
func (r *courseRepo) lowerFunc() string {
	if r.driver == config.DriverPostgres {
		return "LOWER"
	}
	return "go_lower"
}

func (r *courseRepo) GetCourseByID(ctx context.Context, courseID int64) (*model.Course, error) {
	query := r.rebind(`SELECT ` + courseColumns + ` FROM courses WHERE id = ?`)
	c, err := scanCourse(r.q.QueryRowContext(ctx, query, courseID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	return c, nil
}

func (r *courseRepo) ExistsByTitleAndEmail(ctx context.Context, title, email string) (bool, error) {
	query := r.rebind(`SELECT 1 FROM courses WHERE title = ? AND instructor_email = ?`)
	var one int
	err := r.q.QueryRowContext(ctx, query, title, email).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check course uniqueness: %w", err)
	}
	return true, nil
}

func (r *courseRepo) GetContent(ctx context.Context, courseID int64) (*model.CourseContent, error) {
	query := r.rebind(`
		SELECT id, course_id, video_path, material_path, title
		FROM course_content
		WHERE course_id = ?
		ORDER BY id ASC
		LIMIT 1
	`)
	var cc model.CourseContent
	err := r.q.QueryRowContext(ctx, query, courseID).Scan(
		&cc.ID,
		&cc.CourseID,
		&cc.VideoPath,
		&cc.MaterialPath,
		&cc.Title,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get course content: %w", err)
	}
	return &cc, nil
}

func (r *courseRepo) DeleteCourse(ctx context.Context, courseID int64) error {
	return r.WithTx(ctx, func(repo CourseRepository) error {
		tr := repo.(*courseRepo)
		if _, err := tr.q.ExecContext(ctx, tr.rebind(`DELETE FROM course_content WHERE course_id = ?`), courseID); err != nil {
			return fmt.Errorf("failed to delete course content: %w", err)
		}
		res, err := tr.q.ExecContext(ctx, tr.rebind(`DELETE FROM courses WHERE id = ?`), courseID)
		if err != nil {
			return fmt.Errorf("failed to delete course: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read deleted rows: %w", err)
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *courseRepo) WithTx(ctx context.Context, fn func(repo CourseRepository) error) (err error) {
	if r.tx != nil {
		return fn(r)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	txRepo := &courseRepo{db: r.db, q: tx, tx: tx, driver: r.driver, logger: r.logger}
	if err := fn(txRepo); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.logger.Error().Err(rbErr).Msg("Failed to roll back transaction")
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *courseRepo) queryCourses(ctx context.Context, query string, args ...any) ([]model.Course, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query courses: %w", err)
	}
	defer rows.Close()

	courses := []model.Course{}
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan course row: %w", err)
		}
		courses = append(courses, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return courses, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCourse(row rowScanner) (*model.Course, error) {
	var (
		c           model.Course
		description sql.NullString
	)
	if err := row.Scan(
		&c.ID,
		&c.Title,
		&description,
		&c.InstructorEmail,
		&c.InstructorName,
		&c.DeletionPIN,
		&c.DonationQR,
		&c.CreatedAt,
	); err != nil {
		return nil, err
	}
	c.Description = description.String
	return &c, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern builds a case-insensitive substring pattern with LIKE
// metacharacters matched literally.
func likePattern(query string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(query)) + "%"
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
