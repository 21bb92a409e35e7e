package inkwell

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Sentinel errors returned by Store operations. Handlers translate these
// into flash messages or 404s; anything else propagates as a server error.
var (
	ErrNotFound    = sql.ErrNoRows
	ErrEmailExists = errors.New("email already registered")
	ErrTitleExists = errors.New("title already in use")
)

// Store wraps a SQLite database and provides CRUD operations for users,
// blog posts, and comments.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and runs schema migrations.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Enable WAL mode for concurrent read/write access, set a busy timeout
	// so writers wait instead of returning SQLITE_BUSY immediately, and
	// turn on foreign key enforcement so deleting a post cascades to its
	// comments. synchronous=NORMAL is safe with WAL and avoids an fsync
	// per transaction.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
		PRAGMA foreign_keys=ON;
		PRAGMA cache_size=-8000;
	`); err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    name TEXT NOT NULL,
    is_admin INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS posts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    author_id INTEGER NOT NULL REFERENCES users(id),
    title TEXT NOT NULL UNIQUE,
    subtitle TEXT NOT NULL,
    date TEXT NOT NULL,
    body TEXT NOT NULL,
    author TEXT NOT NULL,
    img_url TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS comments (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    author_id INTEGER NOT NULL REFERENCES users(id),
    post_id INTEGER NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
    text TEXT NOT NULL
);
`)
	return err
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure on
// the given table.column. The modernc driver exposes constraint failures
// only through the error text.
func isUniqueViolation(err error, column string) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: "+column)
}

// CreateUser inserts a new account. The very first account inserted is
// seeded as the admin; every later account is a regular user. Returns
// ErrEmailExists if the email is already registered.
func (s *Store) CreateUser(email, passwordHash, name string) (User, error) {
	res, err := s.db.Exec(
		`INSERT INTO users (email, password_hash, name, is_admin)
		 VALUES (?, ?, ?, (SELECT COUNT(*) = 0 FROM users))`,
		email, passwordHash, name)
	if err != nil {
		if isUniqueViolation(err, "users.email") {
			return User{}, ErrEmailExists
		}
		return User{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return User{}, err
	}
	return s.GetUser(id)
}

// GetUser returns the user with the given id, or ErrNotFound.
func (s *Store) GetUser(id int64) (User, error) {
	u := User{ID: id}
	var admin int
	err := s.db.QueryRow(`SELECT email, password_hash, name, is_admin FROM users WHERE id = ?`, id).
		Scan(&u.Email, &u.PasswordHash, &u.Name, &admin)
	if err != nil {
		return User{}, err
	}
	u.Admin = admin == 1
	return u, nil
}

// GetUserByEmail returns the user registered under email, or ErrNotFound.
func (s *Store) GetUserByEmail(email string) (User, error) {
	var u User
	var admin int
	err := s.db.QueryRow(`SELECT id, email, password_hash, name, is_admin FROM users WHERE email = ?`, email).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &admin)
	if err != nil {
		return User{}, err
	}
	u.Admin = admin == 1
	return u, nil
}

// ListPosts returns all posts in insertion order for the home listing.
func (s *Store) ListPosts() ([]BlogPost, error) {
	rows, err := s.db.Query(`SELECT id, author_id, title, subtitle, date, body, author, img_url FROM posts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []BlogPost
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// GetPost returns a single post by id, or ErrNotFound.
func (s *Store) GetPost(id int64) (BlogPost, error) {
	row := s.db.QueryRow(`SELECT id, author_id, title, subtitle, date, body, author, img_url FROM posts WHERE id = ?`, id)
	return scanPost(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (BlogPost, error) {
	var p BlogPost
	if err := row.Scan(&p.ID, &p.AuthorID, &p.Title, &p.Subtitle, &p.Date, &p.Body, &p.Author, &p.ImgURL); err != nil {
		return BlogPost{}, err
	}
	p.Link = postLink(p.ID)
	return p, nil
}

// CreatePost inserts a post and returns it with its assigned id. Returns
// ErrTitleExists if the title collides with an existing post.
func (s *Store) CreatePost(p BlogPost) (BlogPost, error) {
	res, err := s.db.Exec(
		`INSERT INTO posts (author_id, title, subtitle, date, body, author, img_url) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.AuthorID, p.Title, p.Subtitle, p.Date, p.Body, p.Author, p.ImgURL)
	if err != nil {
		if isUniqueViolation(err, "posts.title") {
			return BlogPost{}, ErrTitleExists
		}
		return BlogPost{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return BlogPost{}, err
	}
	p.ID = id
	p.Link = postLink(id)
	return p, nil
}

// UpdatePost replaces the mutable fields of a post. The owning author,
// the byline, and the creation date are left unchanged. Returns
// ErrTitleExists on a title collision and ErrNotFound if the post is gone.
func (s *Store) UpdatePost(id int64, title, subtitle, body, imgURL string) error {
	res, err := s.db.Exec(
		`UPDATE posts SET title = ?, subtitle = ?, body = ?, img_url = ? WHERE id = ?`,
		title, subtitle, body, imgURL, id)
	if err != nil {
		if isUniqueViolation(err, "posts.title") {
			return ErrTitleExists
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePost removes a post and, through the foreign key cascade, its
// comments. Deleting an id that does not exist returns ErrNotFound.
func (s *Store) DeletePost(id int64) error {
	res, err := s.db.Exec(`DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateComment inserts a comment linked to its author and post.
func (s *Store) CreateComment(postID, authorID int64, text string) (Comment, error) {
	res, err := s.db.Exec(
		`INSERT INTO comments (author_id, post_id, text) VALUES (?, ?, ?)`,
		authorID, postID, text)
	if err != nil {
		return Comment{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Comment{}, err
	}
	return Comment{ID: id, AuthorID: authorID, PostID: postID, Text: text}, nil
}

// ListCommentsForPost returns the comments on a single post ordered by
// comment id ascending, with author name and email joined in.
func (s *Store) ListCommentsForPost(postID int64) ([]Comment, error) {
	rows, err := s.db.Query(
		`SELECT c.id, c.author_id, c.post_id, c.text, u.name, u.email
		 FROM comments c JOIN users u ON u.id = c.author_id
		 WHERE c.post_id = ? ORDER BY c.id`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.AuthorID, &c.PostID, &c.Text, &c.AuthorName, &c.AuthorEmail); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// countComments returns the number of comments on a post.
func (s *Store) countComments(postID int64) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM comments WHERE post_id = ?`, postID).Scan(&n)
	return n, err
}
