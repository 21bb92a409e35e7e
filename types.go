package inkwell

// User is a registered account. The first account ever created is seeded
// as the admin and is the only principal allowed to mutate posts.
type User struct {
	ID    int64
	Email string
	Name  string
	Admin bool

	// PasswordHash is the bcrypt hash of the account password. The
	// plaintext is never stored or compared directly.
	PasswordHash string
}

// BlogPost is the core content type stored in SQLite and rendered by templates.
type BlogPost struct {
	ID       int64
	AuthorID int64
	Title    string
	Subtitle string
	Date     string // display string, e.g. "August 30, 2026"
	Body     string // rich text from the external editor, rendered as-is
	Author   string // denormalized byline; frozen after creation
	ImgURL   string
	Link     string
}

// Comment is a reader comment attached to a single post. Comments are
// created by authenticated users and removed only when their post is
// deleted.
type Comment struct {
	ID       int64
	AuthorID int64
	PostID   int64
	Text     string

	// AuthorName and AuthorEmail are joined in from the users table for
	// rendering the byline and gravatar.
	AuthorName  string
	AuthorEmail string
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
}
