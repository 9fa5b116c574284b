package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/maheshrc27/publisher/internal/models"
	"github.com/sirupsen/logrus"
)

// PostRepository is the post record store. It is the single source of truth
// for lifecycle state; UpdateStatus is a compare-and-swap on status.
type PostRepository interface {
	Insert(ctx context.Context, post *models.Post) (*models.Post, error)
	// GetByID returns nil, nil when the post does not exist.
	GetByID(ctx context.Context, id string) (*models.Post, error)
	FindDueScheduled(ctx context.Context, now time.Time, limit int) ([]*models.Post, error)
	FindScheduled(ctx context.Context) ([]*models.Post, error)
	FindByOwner(ctx context.Context, ownerID string, filter PostFilter) ([]*models.Post, error)
	FindStuckPublishing(ctx context.Context, startedBefore time.Time) ([]*models.Post, error)
	FindPublishedSince(ctx context.Context, since time.Time) ([]*models.Post, error)
	// UpdateStatus moves id from expected to next and applies upd in the same
	// write. It returns false without error when the current status is not expected.
	UpdateStatus(ctx context.Context, id string, expected, next models.PostStatus, upd *StatusUpdate) (bool, error)
	// UpdateContent rewrites the editable fields of a scheduled post owned by post.OwnerID.
	UpdateContent(ctx context.Context, post *models.Post) (bool, error)
	CountByStatus(ctx context.Context, ownerID string) (map[models.PostStatus]int, error)
	CountUpcoming(ctx context.Context, ownerID string, from, to time.Time) (int, error)
	DeleteScheduledIfOwned(ctx context.Context, id, ownerID string) (bool, error)
}

type PostFilter struct {
	Status   models.PostStatus
	Platform string
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}

// StatusUpdate carries the fields written together with a status transition.
// Nil fields are left untouched.
type StatusUpdate struct {
	PostResults         models.PostResults
	Analytics           *models.Analytics
	ScheduledDate       *time.Time
	PublishedDate       *time.Time
	PublishingStartedAt *time.Time
	Attempt             *int
	Note                *string
}

type statusField struct {
	column string
	value  interface{}
}

// fields lists the columns an update sets, in a fixed order.
func (u *StatusUpdate) fields() []statusField {
	if u == nil {
		return nil
	}
	var out []statusField
	if u.PostResults != nil {
		out = append(out, statusField{"post_results", u.PostResults})
	}
	if u.Analytics != nil {
		out = append(out, statusField{"analytics", *u.Analytics})
	}
	if u.ScheduledDate != nil {
		out = append(out, statusField{"scheduled_date", *u.ScheduledDate})
	}
	if u.PublishedDate != nil {
		out = append(out, statusField{"published_date", *u.PublishedDate})
	}
	if u.PublishingStartedAt != nil {
		out = append(out, statusField{"publishing_started_at", *u.PublishingStartedAt})
	}
	if u.Attempt != nil {
		out = append(out, statusField{"attempt", *u.Attempt})
	}
	if u.Note != nil {
		out = append(out, statusField{"note", *u.Note})
	}
	return out
}

func (u *StatusUpdate) apply(p *models.Post) {
	if u == nil {
		return
	}
	if u.PostResults != nil {
		p.PostResults = append(models.PostResults(nil), u.PostResults...)
	}
	if u.Analytics != nil {
		p.Analytics = *u.Analytics
	}
	if u.ScheduledDate != nil {
		t := *u.ScheduledDate
		p.ScheduledDate = &t
	}
	if u.PublishedDate != nil {
		t := *u.PublishedDate
		p.PublishedDate = &t
	}
	if u.PublishingStartedAt != nil {
		t := *u.PublishingStartedAt
		p.PublishingStartedAt = &t
	}
	if u.Attempt != nil {
		p.Attempt = *u.Attempt
	}
	if u.Note != nil {
		p.Note = *u.Note
	}
}

func (f PostFilter) matches(p *models.Post) bool {
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if f.Platform != "" && !p.HasPlatform(f.Platform) {
		return false
	}
	if f.From != nil && (p.ScheduledDate == nil || p.ScheduledDate.Before(*f.From)) {
		return false
	}
	if f.To != nil && (p.ScheduledDate == nil || p.ScheduledDate.After(*f.To)) {
		return false
	}
	return true
}

const postsSchema = `
CREATE TABLE IF NOT EXISTS posts (
	id                    TEXT PRIMARY KEY,
	owner_id              TEXT NOT NULL,
	content               TEXT NOT NULL DEFAULT '',
	media                 JSONB NOT NULL DEFAULT '[]',
	hashtags              TEXT[] NOT NULL DEFAULT '{}',
	mentions              TEXT[] NOT NULL DEFAULT '{}',
	link                  TEXT NOT NULL DEFAULT '',
	product_id            TEXT NOT NULL DEFAULT '',
	platforms             TEXT[] NOT NULL DEFAULT '{}',
	status                TEXT NOT NULL,
	scheduled_date        TIMESTAMPTZ,
	published_date        TIMESTAMPTZ,
	publishing_started_at TIMESTAMPTZ,
	post_results          JSONB NOT NULL DEFAULT '[]',
	analytics             JSONB NOT NULL DEFAULT '{}',
	attempt               INTEGER NOT NULL DEFAULT 0,
	note                  TEXT NOT NULL DEFAULT '',
	created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS posts_status_scheduled_date_idx ON posts (status, scheduled_date);
CREATE INDEX IF NOT EXISTS posts_owner_id_idx ON posts (owner_id);
`

const postColumns = `id, owner_id, content, media, hashtags, mentions, link, product_id, platforms, status,
	scheduled_date, published_date, publishing_started_at, post_results, analytics, attempt, note, created_at, updated_at`

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

// EnsureSchema creates the posts table and its indexes when missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, postsSchema); err != nil {
		logrus.Info(err.Error())
		return err
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPost(row rowScanner) (*models.Post, error) {
	var post models.Post
	err := row.Scan(
		&post.ID,
		&post.OwnerID,
		&post.Content,
		&post.Media,
		pq.Array(&post.Hashtags),
		pq.Array(&post.Mentions),
		&post.Link,
		&post.ProductID,
		pq.Array(&post.Platforms),
		&post.Status,
		&post.ScheduledDate,
		&post.PublishedDate,
		&post.PublishingStartedAt,
		&post.PostResults,
		&post.Analytics,
		&post.Attempt,
		&post.Note,
		&post.CreatedAt,
		&post.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) queryPosts(ctx context.Context, query string, args ...interface{}) ([]*models.Post, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		logrus.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			logrus.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		logrus.Info(err.Error())
		return nil, err
	}
	return posts, nil
}

func (r *postRepository) Insert(ctx context.Context, post *models.Post) (*models.Post, error) {
	query := `
		INSERT INTO posts (id, owner_id, content, media, hashtags, mentions, link, product_id, platforms,
			status, scheduled_date, post_results, analytics, attempt, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING ` + postColumns

	row := r.db.QueryRowContext(ctx, query,
		post.ID,
		post.OwnerID,
		post.Content,
		post.Media,
		pq.Array(post.Hashtags),
		pq.Array(post.Mentions),
		post.Link,
		post.ProductID,
		pq.Array(post.Platforms),
		post.Status,
		post.ScheduledDate,
		post.PostResults,
		post.Analytics,
		post.Attempt,
		post.Note,
	)
	stored, err := scanPost(row)
	if err != nil {
		logrus.Info(err.Error())
		return nil, err
	}
	return stored, nil
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		logrus.Info(err.Error())
		return nil, err
	}
	return post, nil
}

func (r *postRepository) FindDueScheduled(ctx context.Context, now time.Time, limit int) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts
		WHERE status = $1 AND scheduled_date <= $2
		ORDER BY scheduled_date`
	args := []interface{}{models.PostStatusScheduled, now}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}
	return r.queryPosts(ctx, query, args...)
}

func (r *postRepository) FindScheduled(ctx context.Context) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE status = $1 ORDER BY scheduled_date`
	return r.queryPosts(ctx, query, models.PostStatusScheduled)
}

func (r *postRepository) FindByOwner(ctx context.Context, ownerID string, filter PostFilter) ([]*models.Post, error) {
	conds := []string{"owner_id = $1"}
	args := []interface{}{ownerID}

	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Platform != "" {
		args = append(args, filter.Platform)
		conds = append(conds, fmt.Sprintf("$%d = ANY(platforms)", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conds = append(conds, fmt.Sprintf("scheduled_date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conds = append(conds, fmt.Sprintf("scheduled_date <= $%d", len(args)))
	}

	query := `SELECT ` + postColumns + ` FROM posts WHERE ` + strings.Join(conds, " AND ") + ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return r.queryPosts(ctx, query, args...)
}

func (r *postRepository) FindStuckPublishing(ctx context.Context, startedBefore time.Time) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts
		WHERE status = $1 AND (publishing_started_at IS NULL OR publishing_started_at < $2)`
	return r.queryPosts(ctx, query, models.PostStatusPublishing, startedBefore)
}

func (r *postRepository) FindPublishedSince(ctx context.Context, since time.Time) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE status = $1 AND published_date >= $2`
	return r.queryPosts(ctx, query, models.PostStatusPublished, since)
}

func (r *postRepository) UpdateStatus(ctx context.Context, id string, expected, next models.PostStatus, upd *StatusUpdate) (bool, error) {
	query, args := statusUpdateQuery(id, expected, next, upd, time.Now())
	return r.execAffected(ctx, query, args...)
}

// statusUpdateQuery builds the conditional UPDATE behind UpdateStatus. The row
// changes only while its status still equals expected.
func statusUpdateQuery(id string, expected, next models.PostStatus, upd *StatusUpdate, now time.Time) (string, []interface{}) {
	sets := []string{"status = $1", "updated_at = $2"}
	args := []interface{}{next, now}
	for _, f := range upd.fields() {
		args = append(args, f.value)
		sets = append(sets, fmt.Sprintf("%s = $%d", f.column, len(args)))
	}

	args = append(args, id, expected)
	query := fmt.Sprintf(`UPDATE posts SET %s WHERE id = $%d AND status = $%d`,
		strings.Join(sets, ", "), len(args)-1, len(args))
	return query, args
}

func (r *postRepository) UpdateContent(ctx context.Context, post *models.Post) (bool, error) {
	query := `
		UPDATE posts
		SET content = $1,
			media = $2,
			hashtags = $3,
			mentions = $4,
			link = $5,
			product_id = $6,
			platforms = $7,
			scheduled_date = $8,
			updated_at = $9
		WHERE id = $10 AND owner_id = $11 AND status = $12
	`
	return r.execAffected(ctx, query,
		post.Content,
		post.Media,
		pq.Array(post.Hashtags),
		pq.Array(post.Mentions),
		post.Link,
		post.ProductID,
		pq.Array(post.Platforms),
		post.ScheduledDate,
		time.Now(),
		post.ID,
		post.OwnerID,
		models.PostStatusScheduled,
	)
}

func (r *postRepository) CountByStatus(ctx context.Context, ownerID string) (map[models.PostStatus]int, error) {
	query := `SELECT status, COUNT(*) FROM posts WHERE owner_id = $1 GROUP BY status`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		logrus.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.PostStatus]int)
	for rows.Next() {
		var status models.PostStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			logrus.Info(err.Error())
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func (r *postRepository) CountUpcoming(ctx context.Context, ownerID string, from, to time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM posts
		WHERE owner_id = $1 AND status = $2 AND scheduled_date > $3 AND scheduled_date <= $4`
	var count int
	if err := r.db.QueryRowContext(ctx, query, ownerID, models.PostStatusScheduled, from, to).Scan(&count); err != nil {
		logrus.Info(err.Error())
		return 0, err
	}
	return count, nil
}

func (r *postRepository) DeleteScheduledIfOwned(ctx context.Context, id, ownerID string) (bool, error) {
	query := `DELETE FROM posts WHERE id = $1 AND owner_id = $2 AND status = $3`
	return r.execAffected(ctx, query, id, ownerID, models.PostStatusScheduled)
}

func (r *postRepository) execAffected(ctx context.Context, query string, args ...interface{}) (bool, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		logrus.Info(err.Error())
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		logrus.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}
