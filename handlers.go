package inkwell

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// postIDParam parses the :id route parameter. A non-numeric id is a 404,
// same as a numeric id with no row behind it.
func postIDParam(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusNotFound, "no such post")
	}
	return id, nil
}

func (a *App) handleHome(c echo.Context) error {
	principal := CurrentPrincipal(c)
	if principal == nil {
		// Anonymous visits sweep out any stale identity keys left in
		// the session by interrupted logouts.
		if err := scrubStaleSessionKeys(c); err != nil {
			return err
		}
	}
	posts, err := a.Store.ListPosts()
	if err != nil {
		return err
	}
	return Render(c, a.Views.Home(posts, principal))
}

func (a *App) handleShowPost(c echo.Context) error {
	id, err := postIDParam(c)
	if err != nil {
		return err
	}
	post, err := a.Store.GetPost(id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
		}
		return err
	}
	comments, err := a.Store.ListCommentsForPost(id)
	if err != nil {
		return err
	}
	return Render(c, a.Views.Post(post, comments, CurrentPrincipal(c), CsrfToken(c)))
}

func (a *App) handleAddComment(c echo.Context) error {
	id, err := postIDParam(c)
	if err != nil {
		return err
	}
	principal := CurrentPrincipal(c)
	if principal == nil {
		if err := addFlash(c, "Please login first to comment!"); err != nil {
			return err
		}
		return c.Redirect(http.StatusSeeOther, "/login")
	}
	if _, err := a.Store.GetPost(id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
		}
		return err
	}
	var form CommentForm
	if err := bindAndValidate(c, &form); err != nil {
		return c.Redirect(http.StatusSeeOther, postLink(id))
	}
	if _, err := a.Store.CreateComment(id, principal.ID, form.Text); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, postLink(id))
}

func (a *App) handleAbout(c echo.Context) error {
	return Render(c, a.Views.About(CurrentPrincipal(c)))
}

func (a *App) handleContact(c echo.Context) error {
	return Render(c, a.Views.Contact(CurrentPrincipal(c)))
}

func (a *App) handleFavicon(c echo.Context) error {
	return c.File(a.staticDir + "/favicon.svg")
}

func (a *App) handleRobots(c echo.Context) error {
	return c.File(a.staticDir + "/robots.txt")
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	he, ok := err.(*echo.HTTPError)
	if ok && he.Code == http.StatusNotFound {
		_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
		return
	}
	if ok && he.Code == http.StatusForbidden {
		_ = RenderStatus(c, http.StatusForbidden, a.Views.Forbidden())
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		c.Logger().Errorf("server error: %v", err)
		_ = RenderStatus(c, code, a.Views.ServerError())
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
