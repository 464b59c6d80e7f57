// Package store persists the console's cookies in SQLite so that the
// refresh cookie survives between CLI invocations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"launchpad/pkg/fileutil"

	_ "modernc.org/sqlite"
)

// Cookie is a stored cookie row
type Cookie struct {
	Host      string
	Name      string
	Value     string
	Path      string
	ExpiresAt *time.Time // nil for session cookies
	HTTPOnly  bool
	Secure    bool
	CreatedAt time.Time
}

// Jar is an http.CookieJar backed by SQLite. Cookies are host-only.
type Jar struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open opens (creating if needed) the cookie database at dbPath
func Open(dbPath string, logger *slog.Logger) (*Jar, error) {
	if err := fileutil.EnsureParentDir(dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	j := &Jar{db: db, logger: logger.With("component", "store"), now: time.Now}
	if err := j.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return j, nil
}

// Close closes the database connection
func (j *Jar) Close() error {
	return j.db.Close()
}

func (j *Jar) initSchema() error {
	_, err := j.db.Exec(`
		CREATE TABLE IF NOT EXISTS cookies (
			host TEXT NOT NULL,
			name TEXT NOT NULL,
			value TEXT NOT NULL,
			path TEXT NOT NULL,
			expires_at TEXT,
			http_only INTEGER NOT NULL DEFAULT 0,
			secure INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			PRIMARY KEY (host, name, path)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// SetCookies stores the cookies a response to u set. A cookie that is
// already expired, or has a negative MaxAge, deletes its stored copy.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	ctx := context.Background()
	host := hostKey(u)
	now := j.now().UTC()

	for _, c := range cookies {
		path := c.Path
		if path == "" || path[0] != '/' {
			path = defaultPath(u.Path)
		}

		var expiresAt *string
		switch {
		case c.MaxAge < 0:
			j.delete(ctx, host, c.Name, path)
			continue
		case c.MaxAge > 0:
			formatted := now.Add(time.Duration(c.MaxAge) * time.Second).Format(time.RFC3339)
			expiresAt = &formatted
		case !c.Expires.IsZero():
			if !c.Expires.After(now) {
				j.delete(ctx, host, c.Name, path)
				continue
			}
			formatted := c.Expires.UTC().Format(time.RFC3339)
			expiresAt = &formatted
		}

		_, err := j.db.ExecContext(ctx, `
			INSERT INTO cookies
			(host, name, value, path, expires_at, http_only, secure, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(host, name, path) DO UPDATE SET
				value = excluded.value,
				expires_at = excluded.expires_at,
				http_only = excluded.http_only,
				secure = excluded.secure
		`,
			host,
			c.Name,
			c.Value,
			path,
			expiresAt,
			c.HttpOnly,
			c.Secure,
			now.Format(time.RFC3339),
		)
		if err != nil {
			j.logger.Error("Failed to store cookie", "host", host, "name", c.Name, "error", err)
		}
	}
}

// Cookies returns the unexpired cookies to send with a request to u,
// longest path first.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	stored, err := j.List(context.Background(), hostKey(u))
	if err != nil {
		j.logger.Error("Failed to load cookies", "host", hostKey(u), "error", err)
		return nil
	}

	reqPath := u.Path
	if reqPath == "" {
		reqPath = "/"
	}
	https := u.Scheme == "https"

	var cookies []*http.Cookie
	for _, c := range stored {
		if c.Secure && !https {
			continue
		}
		if !pathMatch(reqPath, c.Path) {
			continue
		}
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value})
	}
	return cookies
}

// List returns the unexpired cookies stored for host. Expired rows are
// purged first.
func (j *Jar) List(ctx context.Context, host string) ([]Cookie, error) {
	now := j.now().UTC().Format(time.RFC3339)
	if _, err := j.db.ExecContext(ctx, `
		DELETE FROM cookies WHERE expires_at IS NOT NULL AND expires_at <= ?
	`, now); err != nil {
		return nil, fmt.Errorf("failed to purge expired cookies: %w", err)
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT host, name, value, path, expires_at, http_only, secure, created_at
		FROM cookies
		WHERE host = ?
		ORDER BY length(path) DESC, created_at ASC
	`, host)
	if err != nil {
		return nil, fmt.Errorf("failed to query cookies: %w", err)
	}
	defer rows.Close()

	var cookies []Cookie
	for rows.Next() {
		c, err := scanCookie(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cookie: %w", err)
		}
		cookies = append(cookies, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return cookies, nil
}

// Get returns the named cookie stored for host, nil if absent or expired
func (j *Jar) Get(ctx context.Context, host, name string) (*Cookie, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT host, name, value, path, expires_at, http_only, secure, created_at
		FROM cookies
		WHERE host = ? AND name = ? AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY length(path) DESC
		LIMIT 1
	`, host, name, j.now().UTC().Format(time.RFC3339))

	c, err := scanCookie(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cookie: %w", err)
	}
	return c, nil
}

// Clear removes every stored cookie
func (j *Jar) Clear(ctx context.Context) error {
	if _, err := j.db.ExecContext(ctx, `DELETE FROM cookies`); err != nil {
		return fmt.Errorf("failed to clear cookies: %w", err)
	}
	return nil
}

func (j *Jar) delete(ctx context.Context, host, name, path string) {
	_, err := j.db.ExecContext(ctx, `
		DELETE FROM cookies WHERE host = ? AND name = ? AND path = ?
	`, host, name, path)
	if err != nil {
		j.logger.Error("Failed to delete cookie", "host", host, "name", name, "error", err)
	}
}

// HostKey is the key cookies for u are stored under
func HostKey(u *url.URL) string {
	return hostKey(u)
}

func hostKey(u *url.URL) string {
	return strings.ToLower(u.Hostname())
}

// defaultPath is the directory of the request path (RFC 6265 5.1.4)
func defaultPath(p string) string {
	if p == "" || p[0] != '/' {
		return "/"
	}
	i := strings.LastIndex(p, "/")
	if i == 0 {
		return "/"
	}
	return p[:i]
}

// pathMatch implements RFC 6265 5.1.4 path-match
func pathMatch(reqPath, cookiePath string) bool {
	if reqPath == cookiePath {
		return true
	}
	if !strings.HasPrefix(reqPath, cookiePath) {
		return false
	}
	return strings.HasSuffix(cookiePath, "/") || reqPath[len(cookiePath)] == '/'
}

// scanner is implemented by both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanCookie(s scanner) (*Cookie, error) {
	var c Cookie
	var expiresAtStr sql.NullString
	var createdAtStr string

	err := s.Scan(
		&c.Host,
		&c.Name,
		&c.Value,
		&c.Path,
		&expiresAtStr,
		&c.HTTPOnly,
		&c.Secure,
		&createdAtStr,
	)
	if err != nil {
		return nil, err
	}

	createdAt, err := time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at timestamp: %w", err)
	}
	c.CreatedAt = createdAt

	if expiresAtStr.Valid {
		expiresAt, err := time.Parse(time.RFC3339, expiresAtStr.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse expires_at timestamp: %w", err)
		}
		c.ExpiresAt = &expiresAt
	}

	return &c, nil
}

var _ http.CookieJar = (*Jar)(nil)
