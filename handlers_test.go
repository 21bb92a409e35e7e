package inkwell

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/a-h/templ"
	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// marker renders a recognizable string so tests can assert which view was
// invoked and with what data, without real templates.
func marker(format string, args ...any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, fmt.Sprintf(format, args...))
		return err
	})
}

func testViews() ViewFuncs {
	return ViewFuncs{
		Home: func(posts []BlogPost, principal *User) templ.Component {
			name := "anonymous"
			if principal != nil {
				name = principal.Name
			}
			return marker("home posts:%d user:%s", len(posts), name)
		},
		Post: func(post BlogPost, comments []Comment, principal *User, csrfToken string) templ.Component {
			return marker("post:%s comments:%d", post.Title, len(comments))
		},
		Register: func(flash, csrfToken string) templ.Component {
			return marker("register flash:%s", flash)
		},
		Login: func(flash, csrfToken string) templ.Component {
			return marker("login flash:%s", flash)
		},
		MakePost: func(post BlogPost, isEdit bool, flash, csrfToken string) templ.Component {
			return marker("makepost edit:%t flash:%s", isEdit, flash)
		},
		About:       func(principal *User) templ.Component { return marker("about") },
		Contact:     func(principal *User) templ.Component { return marker("contact") },
		NotFound:    func() templ.Component { return marker("not found") },
		Forbidden:   func() templ.Component { return marker("forbidden") },
		ServerError: func() templ.Component { return marker("server error") },
	}
}

func newTestApp(t *testing.T) (*App, *httptest.Server) {
	t.Helper()
	cfg := SiteConfig{
		SessionSecret: "test-session-secret",
		DatabasePath:  filepath.Join(t.TempDir(), "blog.db"),
	}
	app := New(cfg, testViews())
	require.NoError(t, app.init())
	srv := httptest.NewServer(app.Echo)
	t.Cleanup(func() {
		srv.Close()
		app.Close()
	})
	return app, srv
}

// newClient returns an HTTP client with its own cookie jar, i.e. its own
// session.
func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

// csrfToken primes the client's CSRF cookie and returns the token value.
func csrfToken(t *testing.T, client *http.Client, baseURL string) string {
	t.Helper()
	resp, err := client.Get(baseURL + "/about")
	require.NoError(t, err)
	resp.Body.Close()
	u, err := url.Parse(baseURL)
	require.NoError(t, err)
	for _, c := range client.Jar.Cookies(u) {
		if c.Name == "_csrf" {
			return c.Value
		}
	}
	t.Fatal("no _csrf cookie issued")
	return ""
}

func postForm(t *testing.T, client *http.Client, target string, vals url.Values, token string) *http.Response {
	t.Helper()
	vals.Set("_csrf", token)
	resp, err := client.PostForm(target, vals)
	require.NoError(t, err)
	return resp
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func register(t *testing.T, client *http.Client, baseURL, name, email, password string) *http.Response {
	t.Helper()
	token := csrfToken(t, client, baseURL)
	return postForm(t, client, baseURL+"/register", url.Values{
		"name":     {name},
		"email":    {email},
		"password": {password},
	}, token)
}

func login(t *testing.T, client *http.Client, baseURL, email, password string) *http.Response {
	t.Helper()
	token := csrfToken(t, client, baseURL)
	return postForm(t, client, baseURL+"/login", url.Values{
		"email":    {email},
		"password": {password},
	}, token)
}

func createPost(t *testing.T, client *http.Client, baseURL, title string) *http.Response {
	t.Helper()
	token := csrfToken(t, client, baseURL)
	return postForm(t, client, baseURL+"/new-post", url.Values{
		"title":    {title},
		"subtitle": {"a subtitle"},
		"body":     {"<p>hello</p>"},
		"img_url":  {"https://example.com/cover.jpg"},
	}, token)
}

func TestRegisterEstablishesSession(t *testing.T) {
	_, srv := newTestApp(t)
	client := newClient(t)

	resp := register(t, client, srv.URL, "Ada", "ada@example.com", "hunter22hunter22")
	assert.Equal(t, "home posts:0 user:Ada", body(t, resp))

	// Revisiting the register page while authenticated bounces home.
	resp, err := client.Get(srv.URL + "/register")
	require.NoError(t, err)
	assert.Contains(t, body(t, resp), "home posts:0")
}

func TestRegisterDuplicateEmail(t *testing.T) {
	app, srv := newTestApp(t)

	first := newClient(t)
	resp := register(t, first, srv.URL, "Ada", "ada@example.com", "hunter22hunter22")
	resp.Body.Close()

	second := newClient(t)
	resp = register(t, second, srv.URL, "Eve", "ada@example.com", "different-password")
	assert.Equal(t, "login flash:Email already exists. Please login instead.", body(t, resp))

	// Still exactly one account behind that email, and it is the first one.
	u, err := app.Store.GetUserByEmail("ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Ada", u.Name)
}

func TestLoginRejectionsAreIndistinguishable(t *testing.T) {
	_, srv := newTestApp(t)

	setup := newClient(t)
	register(t, setup, srv.URL, "Ada", "ada@example.com", "hunter22hunter22").Body.Close()

	wrongPass := login(t, newClient(t), srv.URL, "ada@example.com", "not-the-password")
	noAccount := login(t, newClient(t), srv.URL, "ghost@example.com", "whatever123")

	wrongBody := body(t, wrongPass)
	assert.Equal(t, "login flash:Invalid Credentials", wrongBody)
	assert.Equal(t, wrongBody, body(t, noAccount))
}

func TestLoginSuccess(t *testing.T) {
	_, srv := newTestApp(t)

	register(t, newClient(t), srv.URL, "Ada", "ada@example.com", "hunter22hunter22").Body.Close()

	client := newClient(t)
	resp := login(t, client, srv.URL, "ada@example.com", "hunter22hunter22")
	assert.Equal(t, "home posts:0 user:Ada", body(t, resp))
}

func TestOnlyFirstAccountMayMutatePosts(t *testing.T) {
	_, srv := newTestApp(t)

	admin := newClient(t)
	register(t, admin, srv.URL, "Admin", "admin@example.com", "hunter22hunter22").Body.Close()

	reader := newClient(t)
	register(t, reader, srv.URL, "Reader", "reader@example.com", "hunter22hunter22").Body.Close()

	// The admin can reach the new-post form.
	resp, err := admin.Get(srv.URL + "/new-post")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "makepost edit:false flash:", body(t, resp))

	// The second account is forbidden from every mutating route, with a
	// valid session.
	for _, path := range []string{"/new-post", "/edit-post/1", "/delete/1"} {
		resp, err := reader.Get(srv.URL + path)
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, path)
		assert.Equal(t, "forbidden", body(t, resp), path)
	}

	// So is an anonymous visitor.
	resp, err = newClient(t).Get(srv.URL + "/new-post")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
}

func TestForbiddenPostMutationHasNoEffect(t *testing.T) {
	app, srv := newTestApp(t)

	register(t, newClient(t), srv.URL, "Admin", "admin@example.com", "hunter22hunter22").Body.Close()
	reader := newClient(t)
	register(t, reader, srv.URL, "Reader", "reader@example.com", "hunter22hunter22").Body.Close()

	resp := createPost(t, reader, srv.URL, "Sneaky Post")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	posts, err := app.Store.ListPosts()
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestCreateShowAndListPosts(t *testing.T) {
	app, srv := newTestApp(t)

	admin := newClient(t)
	register(t, admin, srv.URL, "Admin", "admin@example.com", "hunter22hunter22").Body.Close()

	resp := createPost(t, admin, srv.URL, "Hello World")
	assert.Equal(t, "home posts:1 user:Admin", body(t, resp))

	posts, err := app.Store.ListPosts()
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "Admin", posts[0].Author)

	resp, err = newClient(t).Get(srv.URL + posts[0].Link)
	require.NoError(t, err)
	assert.Equal(t, "post:Hello World comments:0", body(t, resp))
}

func TestCreatePostDuplicateTitleFlash(t *testing.T) {
	_, srv := newTestApp(t)

	admin := newClient(t)
	register(t, admin, srv.URL, "Admin", "admin@example.com", "hunter22hunter22").Body.Close()
	createPost(t, admin, srv.URL, "Hello World").Body.Close()

	resp := createPost(t, admin, srv.URL, "Hello World")
	assert.Equal(t, "makepost edit:false flash:A post with that title already exists.", body(t, resp))
}

func TestAnonymousCommentIsRejected(t *testing.T) {
	app, srv := newTestApp(t)

	admin := newClient(t)
	register(t, admin, srv.URL, "Admin", "admin@example.com", "hunter22hunter22").Body.Close()
	createPost(t, admin, srv.URL, "Hello World").Body.Close()

	posts, err := app.Store.ListPosts()
	require.NoError(t, err)
	require.Len(t, posts, 1)

	anon := newClient(t)
	token := csrfToken(t, anon, srv.URL)
	resp := postForm(t, anon, srv.URL+posts[0].Link, url.Values{"comment": {"first!"}}, token)
	assert.Equal(t, "login flash:Please login first to comment!", body(t, resp))

	n, err := app.Store.countComments(posts[0].ID)
	require.NoError(t, err)
	assert.Zero(t, n, "no comment row may be persisted for an anonymous visitor")
}

func TestAuthenticatedComment(t *testing.T) {
	app, srv := newTestApp(t)

	admin := newClient(t)
	register(t, admin, srv.URL, "Admin", "admin@example.com", "hunter22hunter22").Body.Close()
	createPost(t, admin, srv.URL, "Hello World").Body.Close()

	posts, err := app.Store.ListPosts()
	require.NoError(t, err)
	require.Len(t, posts, 1)

	reader := newClient(t)
	register(t, reader, srv.URL, "Reader", "reader@example.com", "hunter22hunter22").Body.Close()

	token := csrfToken(t, reader, srv.URL)
	resp := postForm(t, reader, srv.URL+posts[0].Link, url.Values{"comment": {"great post"}}, token)
	// Redirects back to the same post with the comment visible.
	assert.Equal(t, "post:Hello World comments:1", body(t, resp))
}

func TestEditPostKeepsByline(t *testing.T) {
	app, srv := newTestApp(t)

	admin := newClient(t)
	register(t, admin, srv.URL, "Admin", "admin@example.com", "hunter22hunter22").Body.Close()
	createPost(t, admin, srv.URL, "Hello World").Body.Close()

	posts, err := app.Store.ListPosts()
	require.NoError(t, err)
	require.Len(t, posts, 1)

	token := csrfToken(t, admin, srv.URL)
	resp := postForm(t, admin, fmt.Sprintf("%s/edit-post/%d", srv.URL, posts[0].ID), url.Values{
		"title":    {"Hello Again"},
		"subtitle": {"revised"},
		"body":     {"<p>updated</p>"},
	}, token)
	assert.Equal(t, "post:Hello Again comments:0", body(t, resp))

	got, err := app.Store.GetPost(posts[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Admin", got.Author)
	assert.Equal(t, posts[0].Date, got.Date)
}

func TestDeletePostFlow(t *testing.T) {
	app, srv := newTestApp(t)

	admin := newClient(t)
	register(t, admin, srv.URL, "Admin", "admin@example.com", "hunter22hunter22").Body.Close()
	createPost(t, admin, srv.URL, "Hello World").Body.Close()

	posts, err := app.Store.ListPosts()
	require.NoError(t, err)
	require.Len(t, posts, 1)

	resp, err := admin.Get(fmt.Sprintf("%s/delete/%d", srv.URL, posts[0].ID))
	require.NoError(t, err)
	assert.Equal(t, "home posts:0 user:Admin", body(t, resp))

	// Retrying the delete is a 404, not a crash.
	resp, err = admin.Get(fmt.Sprintf("%s/delete/%d", srv.URL, posts[0].ID))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not found", body(t, resp))

	_, err = app.Store.GetPost(posts[0].ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMissingPostIs404(t *testing.T) {
	_, srv := newTestApp(t)

	resp, err := newClient(t).Get(srv.URL + "/post/12345")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not found", body(t, resp))

	// Non-numeric ids behave the same.
	resp, err = newClient(t).Get(srv.URL + "/post/not-a-number")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestLogoutIsIdempotent(t *testing.T) {
	_, srv := newTestApp(t)

	client := newClient(t)
	register(t, client, srv.URL, "Ada", "ada@example.com", "hunter22hunter22").Body.Close()

	for i := 0; i < 2; i++ {
		resp, err := client.Get(srv.URL + "/logout")
		require.NoError(t, err)
		assert.Equal(t, "login flash:", body(t, resp))
	}

	// Back to anonymous.
	resp, err := client.Get(srv.URL + "/")
	require.NoError(t, err)
	assert.Equal(t, "home posts:0 user:anonymous", body(t, resp))
}

func TestSessionForMissingUserIsFatal(t *testing.T) {
	app, srv := newTestApp(t)

	client := newClient(t)
	register(t, client, srv.URL, "Ada", "ada@example.com", "hunter22hunter22").Body.Close()

	// Remove the account behind the live session.
	_, err := app.Store.db.Exec(`DELETE FROM users`)
	require.NoError(t, err)

	resp, err := client.Get(srv.URL + "/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

// plantSessionCookie forges a session cookie carrying the given values, as
// the app itself would have written it, and installs it in the client's jar.
func plantSessionCookie(t *testing.T, client *http.Client, baseURL string, values map[any]any) {
	t.Helper()
	store := sessions.NewCookieStore([]byte("test-session-secret"))
	req := httptest.NewRequest(http.MethodGet, baseURL, nil)
	sess, err := store.New(req, sessionName)
	require.NoError(t, err)
	for k, v := range values {
		sess.Values[k] = v
	}
	rec := httptest.NewRecorder()
	require.NoError(t, sess.Save(req, rec))
	u, err := url.Parse(baseURL)
	require.NoError(t, err)
	client.Jar.SetCookies(u, rec.Result().Cookies())
}

// decodeSessionCookie reads the session cookie currently in the client's jar
// back into its value map.
func decodeSessionCookie(t *testing.T, client *http.Client, baseURL string) map[any]any {
	t.Helper()
	u, err := url.Parse(baseURL)
	require.NoError(t, err)
	var cookie *http.Cookie
	for _, c := range client.Jar.Cookies(u) {
		if c.Name == sessionName {
			cookie = c
		}
	}
	require.NotNil(t, cookie, "no session cookie in jar")
	store := sessions.NewCookieStore([]byte("test-session-secret"))
	req := httptest.NewRequest(http.MethodGet, baseURL, nil)
	req.AddCookie(cookie)
	sess, err := store.New(req, sessionName)
	require.NoError(t, err)
	return sess.Values
}

func TestAnonymousHomeScrubsStaleSessionKeys(t *testing.T) {
	_, srv := newTestApp(t)
	client := newClient(t)

	// A leftover identity key without a user_id, as a broken logout could
	// leave behind, next to a system key that must survive.
	plantSessionCookie(t, client, srv.URL, map[any]any{
		"name":    "Ghost",
		"_marker": "keep",
	})

	// The stale key does not authenticate anyone.
	resp, err := client.Get(srv.URL + "/")
	require.NoError(t, err)
	assert.Equal(t, "home posts:0 user:anonymous", body(t, resp))

	// The re-issued cookie no longer carries it, but underscore-prefixed
	// system keys are untouched.
	values := decodeSessionCookie(t, client, srv.URL)
	assert.NotContains(t, values, "name")
	assert.Equal(t, "keep", values["_marker"])
}

func TestLoginRateLimit(t *testing.T) {
	_, srv := newTestApp(t)

	register(t, newClient(t), srv.URL, "Ada", "ada@example.com", "hunter22hunter22").Body.Close()

	client := newClient(t)
	var last *http.Response
	for i := 0; i < 6; i++ {
		last = login(t, client, srv.URL, "ada@example.com", "wrong-password")
		if i < 5 {
			last.Body.Close()
		}
	}
	assert.Equal(t, http.StatusTooManyRequests, last.StatusCode)
	last.Body.Close()
}

// Requests that fail form validation count toward the throttle just like
// wrong passwords do.
func TestMalformedLoginAttemptsAreThrottled(t *testing.T) {
	_, srv := newTestApp(t)

	client := newClient(t)
	token := csrfToken(t, client, srv.URL)
	var last *http.Response
	for i := 0; i < 6; i++ {
		last = postForm(t, client, srv.URL+"/login", url.Values{
			"email":    {"not-an-email"},
			"password": {"x"},
		}, token)
		if i < 5 {
			assert.Equal(t, "login flash:Invalid Credentials", body(t, last))
		}
	}
	assert.Equal(t, http.StatusTooManyRequests, last.StatusCode)
	last.Body.Close()
}
