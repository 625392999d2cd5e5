package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is an exported constant or variable used by the content repositories.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is an exported constant or variable used by the content repositories.
	ErrDuplicate = errors.New("duplicate record")
	// ErrUnavailable is an exported constant or variable used by the content repositories.
	ErrUnavailable = errors.New("postgres unavailable")
)

// Blog is a published article row. ImageURL and MediaKey travel together;
// MediaKey identifies the object on the media host for later deletion.
type Blog struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	Body      string    `json:"body"`
	ImageURL  string    `json:"imageUrl"`
	MediaKey  string    `json:"-"`
	AuthorID  string    `json:"authorId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ContactForm is a single contact submission.
type ContactForm struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// Subscription is an email-subscription row. Emails are unique
// case-insensitively.
type Subscription struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// ContentStore bundles the thin CRUD repositories for blogs, contact
// forms, and subscriptions on the shared pool.
type ContentStore struct {
	pool *pgxpool.Pool
}

// NewContentStore creates a [ContentStore] on the shared pool.
func NewContentStore(pool *pgxpool.Pool) *ContentStore {
	return &ContentStore{pool: pool}
}

const blogColumns = `id, title, slug, body, image_url, media_key, author_id, created_at, updated_at`

func scanBlog(row pgx.Row) (Blog, error) {
	var b Blog
	err := row.Scan(&b.ID, &b.Title, &b.Slug, &b.Body, &b.ImageURL, &b.MediaKey, &b.AuthorID, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

// CreateBlog inserts a blog row. Duplicate slugs return [ErrDuplicate].
func (s *ContentStore) CreateBlog(ctx context.Context, blog Blog) (Blog, error) {
	blog.ID = uuid.NewString()
	now := time.Now().UTC()
	blog.CreatedAt = now
	blog.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO blogs (id, title, slug, body, image_url, media_key, author_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		blog.ID, blog.Title, blog.Slug, blog.Body, blog.ImageURL, blog.MediaKey, blog.AuthorID, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return Blog{}, ErrDuplicate
		}
		return Blog{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return blog, nil
}

// ListBlogs returns blogs newest first.
func (s *ContentStore) ListBlogs(ctx context.Context) ([]Blog, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+blogColumns+` FROM blogs ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	blogs := make([]Blog, 0)
	for rows.Next() {
		b, err := scanBlog(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		blogs = append(blogs, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return blogs, nil
}

// GetBlogBySlug describes the getblogbyslug operation and its observable behavior.
//
// GetBlogBySlug may return an error when input validation, dependency calls, or security checks fail.
// GetBlogBySlug does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *ContentStore) GetBlogBySlug(ctx context.Context, slug string) (Blog, error) {
	b, err := scanBlog(s.pool.QueryRow(ctx,
		`SELECT `+blogColumns+` FROM blogs WHERE slug = $1`, slug,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Blog{}, ErrNotFound
		}
		return Blog{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return b, nil
}

// GetBlogByID describes the getblogbyid operation and its observable behavior.
//
// GetBlogByID may return an error when input validation, dependency calls, or security checks fail.
// GetBlogByID does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *ContentStore) GetBlogByID(ctx context.Context, id string) (Blog, error) {
	b, err := scanBlog(s.pool.QueryRow(ctx,
		`SELECT `+blogColumns+` FROM blogs WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Blog{}, ErrNotFound
		}
		return Blog{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return b, nil
}

// UpdateBlog rewrites the mutable fields of an existing blog row.
func (s *ContentStore) UpdateBlog(ctx context.Context, blog Blog) (Blog, error) {
	blog.UpdatedAt = time.Now().UTC()

	tag, err := s.pool.Exec(ctx,
		`UPDATE blogs
		    SET title = $1, slug = $2, body = $3, image_url = $4, media_key = $5, updated_at = $6
		  WHERE id = $7`,
		blog.Title, blog.Slug, blog.Body, blog.ImageURL, blog.MediaKey, blog.UpdatedAt, blog.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return Blog{}, ErrDuplicate
		}
		return Blog{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return Blog{}, ErrNotFound
	}
	return blog, nil
}

// DeleteBlog removes a blog row. The caller is responsible for deleting
// the associated media object.
func (s *ContentStore) DeleteBlog(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM blogs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateContactForm persists a contact submission.
func (s *ContentStore) CreateContactForm(ctx context.Context, form ContactForm) (ContactForm, error) {
	form.ID = uuid.NewString()
	form.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO contact_forms (id, name, email, message, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		form.ID, form.Name, form.Email, form.Message, form.CreatedAt,
	)
	if err != nil {
		return ContactForm{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return form, nil
}

// ListContactForms returns submissions newest first.
func (s *ContentStore) ListContactForms(ctx context.Context) ([]ContactForm, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, email, message, created_at FROM contact_forms ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	forms := make([]ContactForm, 0)
	for rows.Next() {
		var f ContactForm
		if err := rows.Scan(&f.ID, &f.Name, &f.Email, &f.Message, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		forms = append(forms, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return forms, nil
}

// CreateSubscription persists a subscription. Duplicate emails return
// [ErrDuplicate].
func (s *ContentStore) CreateSubscription(ctx context.Context, email string) (Subscription, error) {
	sub := Subscription{
		ID:        uuid.NewString(),
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO subscriptions (id, email, created_at) VALUES ($1, $2, $3)`,
		sub.ID, sub.Email, sub.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return Subscription{}, ErrDuplicate
		}
		return Subscription{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return sub, nil
}

// ListSubscriptions returns subscriptions newest first.
func (s *ContentStore) ListSubscriptions(ctx context.Context) ([]Subscription, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, email, created_at FROM subscriptions ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	subs := make([]Subscription, 0)
	for rows.Next() {
		var sub Subscription
		if err := rows.Scan(&sub.ID, &sub.Email, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return subs, nil
}
