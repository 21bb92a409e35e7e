package inkwell

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

const sessionName = "user_session"

// principalKey is the echo context key under which the resolved *User for
// the current request is stored.
const principalKey = "inkwell.principal"

// HashPassword generates the bcrypt hash for a password. It errors if the
// password is longer than 72 bytes.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password resolves to the stored hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// resolvePrincipal loads the session's user once per request and stores it
// on the context as a typed principal. Requests without a session, or with
// an unreadable cookie, proceed as anonymous. A session that references a
// user row that no longer exists is a hard 404, not anonymous.
func (a *App) resolvePrincipal(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, err := session.Get(sessionName, c)
		if err != nil {
			return next(c)
		}
		id, ok := sess.Values["user_id"].(int64)
		if !ok {
			return next(c)
		}
		user, err := a.Store.GetUser(id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, "session references an unknown user")
			}
			return err
		}
		c.Set(principalKey, &user)
		return next(c)
	}
}

// CurrentPrincipal returns the authenticated user for this request, or nil
// for an anonymous visitor.
func CurrentPrincipal(c echo.Context) *User {
	u, _ := c.Get(principalKey).(*User)
	return u
}

// requireAdmin aborts non-admin requests with a 403 before the wrapped
// handler runs, so no handler logic or form parsing happens for a
// forbidden request.
func requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		u := CurrentPrincipal(c)
		if u == nil || !u.Admin {
			return echo.NewHTTPError(http.StatusForbidden, "admins only")
		}
		return next(c)
	}
}

func setPrincipalSession(c echo.Context, u User) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return err
	}
	sess.Values["user_id"] = u.ID
	sess.Values["name"] = u.Name
	return sess.Save(c.Request(), c.Response())
}

// clearPrincipalSession expires the session cookie. Calling it without an
// active session is a no-op, so logout is idempotent.
func clearPrincipalSession(c echo.Context) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return err
	}
	sess.Options.MaxAge = -1
	return sess.Save(c.Request(), c.Response())
}

// scrubStaleSessionKeys removes every non-system session key (anything not
// prefixed with an underscore). Run on the home listing for anonymous
// visitors so leftover identity keys from a broken logout cannot linger.
func scrubStaleSessionKeys(c echo.Context) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return nil
	}
	dirty := false
	for k := range sess.Values {
		if name, ok := k.(string); ok && !strings.HasPrefix(name, "_") {
			delete(sess.Values, k)
			dirty = true
		}
	}
	if !dirty {
		return nil
	}
	return sess.Save(c.Request(), c.Response())
}

// addFlash queues a one-time user-visible message for the next rendered page.
func addFlash(c echo.Context, msg string) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return err
	}
	sess.AddFlash(msg)
	return sess.Save(c.Request(), c.Response())
}

// popFlash returns the oldest queued flash message, consuming all of them.
func popFlash(c echo.Context) string {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return ""
	}
	flashes := sess.Flashes()
	if len(flashes) == 0 {
		return ""
	}
	_ = sess.Save(c.Request(), c.Response())
	return fmt.Sprint(flashes[0])
}
