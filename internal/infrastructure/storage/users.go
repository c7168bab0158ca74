package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"PhoneVerse/internal/domain"
)

var userColumns = []string{
	"id", "username", "email", "password", "full_name", "bio", "profile_image",
	"role", "status", "article_count", "total_views", "created_at", "last_login",
}

func scanUser(row scanner) (domain.User, error) {
	var (
		u         domain.User
		role      string
		status    string
		lastLogin sql.NullTime
	)
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FullName, &u.Bio, &u.ProfileImage,
		&role, &status, &u.ArticleCount, &u.TotalViews, &u.CreatedAt, &lastLogin,
	)
	if err != nil {
		return domain.User{}, err
	}
	u.Role = domain.Role(role)
	u.Status = domain.UserStatus(status)
	u.LastLogin = ptrTime(lastLogin)
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

func (s *Store) getUser(ctx context.Context, pred sq.Sqlizer) (domain.User, error) {
	row, err := s.queryRow(ctx, s.sb.Select(userColumns...).From("users").Where(pred).Limit(1))
	if err != nil {
		return domain.User{}, err
	}
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// CreateUser inserts a new account. Username and email collisions map to
// domain.ErrDuplicateUser.
func (s *Store) CreateUser(ctx context.Context, u domain.User) (int64, error) {
	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	role := u.Role
	if role == "" {
		role = domain.RoleUser
	}
	status := u.Status
	if status == "" {
		status = domain.UserActive
	}

	row, err := s.queryRow(ctx, s.sb.Insert("users").
		Columns("username", "email", "password", "full_name", "bio", "profile_image", "role", "status", "created_at").
		Values(u.Username, u.Email, u.PasswordHash, u.FullName, u.Bio, u.ProfileImage, string(role), string(status), s.ts(createdAt)).
		Suffix("RETURNING id"))
	if err != nil {
		return 0, err
	}
	var id int64
	if err := row.Scan(&id); err != nil {
		if isUniqueViolation(err) {
			return 0, domain.ErrDuplicateUser
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return id, nil
}

// UserExists reports whether either the username or the email is taken.
func (s *Store) UserExists(ctx context.Context, username, email string) (bool, error) {
	ok, err := s.exists(ctx, "users", sq.Or{
		sq.Eq{"username": username},
		sq.Expr("LOWER(email) = ?", strings.ToLower(email)),
	})
	if err != nil {
		return false, fmt.Errorf("lookup user: %w", err)
	}
	return ok, nil
}

// GetUser loads a user by id.
func (s *Store) GetUser(ctx context.Context, id int64) (domain.User, error) {
	return s.getUser(ctx, sq.Eq{"id": id})
}

// GetUserByLogin loads a user by username or email.
func (s *Store) GetUserByLogin(ctx context.Context, login string) (domain.User, error) {
	return s.getUser(ctx, sq.Or{
		sq.Eq{"username": login},
		sq.Expr("LOWER(email) = ?", strings.ToLower(login)),
	})
}

// ListUsers returns all users, newest first.
func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.query(ctx, s.sb.Select(userColumns...).From("users").OrderBy("created_at DESC", "id DESC"))
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return users, nil
}

// UpdateLastLogin stamps a successful sign-in.
func (s *Store) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	res, err := s.exec(ctx, s.sb.Update("users").Set("last_login", s.ts(at)).Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return affectedOrNotFound(res)
}

// UpdateProfile writes the non-nil profile fields.
func (s *Store) UpdateProfile(ctx context.Context, id int64, update domain.ProfileUpdate) error {
	b := s.sb.Update("users").Where(sq.Eq{"id": id})
	changed := false
	if update.FullName != nil {
		b = b.Set("full_name", *update.FullName)
		changed = true
	}
	if update.Bio != nil {
		b = b.Set("bio", *update.Bio)
		changed = true
	}
	if update.ProfileImage != nil {
		b = b.Set("profile_image", *update.ProfileImage)
		changed = true
	}
	if !changed {
		_, err := s.GetUser(ctx, id)
		return err
	}

	res, err := s.exec(ctx, b)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return affectedOrNotFound(res)
}

// SetUserStatus activates or suspends an account.
func (s *Store) SetUserStatus(ctx context.Context, id int64, status domain.UserStatus) error {
	res, err := s.exec(ctx, s.sb.Update("users").Set("status", string(status)).Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return affectedOrNotFound(res)
}

// SetUserRole promotes or demotes an account.
func (s *Store) SetUserRole(ctx context.Context, id int64, role domain.Role) error {
	res, err := s.exec(ctx, s.sb.Update("users").Set("role", string(role)).Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	return affectedOrNotFound(res)
}

// DeleteUser removes a user, their sessions, and detaches their articles.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	steps := []sq.Sqlizer{
		s.sb.Delete("sessions").Where(sq.Eq{"user_id": id}),
		s.sb.Update("articles").Set("author_id", nil).Where(sq.Eq{"author_id": id}),
	}
	for _, step := range steps {
		query, args, err := step.ToSql()
		if err != nil {
			return fmt.Errorf("build query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("delete user dependents: %w", err)
		}
	}

	query, args, err := s.sb.Delete("users").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if err := affectedOrNotFound(res); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// IncrementArticleCount adds one authored article to the cache.
func (s *Store) IncrementArticleCount(ctx context.Context, id int64) error {
	_, err := s.exec(ctx, s.sb.Update("users").
		Set("article_count", sq.Expr("article_count + 1")).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("increment article count: %w", err)
	}
	return nil
}

// DecrementArticleCount removes one authored article from the cache, never below zero.
func (s *Store) DecrementArticleCount(ctx context.Context, id int64) error {
	_, err := s.exec(ctx, s.sb.Update("users").
		Set("article_count", sq.Expr("CASE WHEN article_count > 0 THEN article_count - 1 ELSE 0 END")).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("decrement article count: %w", err)
	}
	return nil
}

// RecountUserStats rebuilds the cached aggregates from the articles table.
func (s *Store) RecountUserStats(ctx context.Context, id int64) error {
	_, err := s.exec(ctx, s.sb.Update("users").
		Set("article_count", sq.Expr("(SELECT COUNT(1) FROM articles WHERE author_id = ?)", id)).
		Set("total_views", sq.Expr("(SELECT COALESCE(SUM(view_count), 0) FROM articles WHERE author_id = ?)", id)).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("recount user stats: %w", err)
	}
	return nil
}
