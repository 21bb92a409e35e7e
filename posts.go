package inkwell

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// displayDate is the human-facing creation date stamped on new posts.
func displayDate(t time.Time) string {
	return t.Format("January 2, 2006")
}

func (a *App) handleNewPostForm(c echo.Context) error {
	return Render(c, a.Views.MakePost(BlogPost{}, false, popFlash(c), CsrfToken(c)))
}

func (a *App) handleCreatePost(c echo.Context) error {
	principal := CurrentPrincipal(c)
	var form PostForm
	if err := bindAndValidate(c, &form); err != nil {
		if err := addFlash(c, "All fields except the image URL are required."); err != nil {
			return err
		}
		return c.Redirect(http.StatusSeeOther, "/new-post")
	}
	_, err := a.Store.CreatePost(BlogPost{
		AuthorID: principal.ID,
		Title:    form.Title,
		Subtitle: form.Subtitle,
		Date:     displayDate(time.Now()),
		Body:     form.Body,
		Author:   principal.Name,
		ImgURL:   form.ImgURL,
	})
	if err != nil {
		if errors.Is(err, ErrTitleExists) {
			if err := addFlash(c, "A post with that title already exists."); err != nil {
				return err
			}
			return c.Redirect(http.StatusSeeOther, "/new-post")
		}
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

func (a *App) handleEditPostForm(c echo.Context) error {
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
	return Render(c, a.Views.MakePost(post, true, popFlash(c), CsrfToken(c)))
}

// handleUpdatePost replaces a post's mutable fields. The byline keeps the
// original author name even though only the admin can edit.
func (a *App) handleUpdatePost(c echo.Context) error {
	id, err := postIDParam(c)
	if err != nil {
		return err
	}
	var form PostForm
	if err := bindAndValidate(c, &form); err != nil {
		if err := addFlash(c, "All fields except the image URL are required."); err != nil {
			return err
		}
		return c.Redirect(http.StatusSeeOther, "/edit-post/"+c.Param("id"))
	}
	err = a.Store.UpdatePost(id, form.Title, form.Subtitle, form.Body, form.ImgURL)
	switch {
	case errors.Is(err, ErrTitleExists):
		if err := addFlash(c, "A post with that title already exists."); err != nil {
			return err
		}
		return c.Redirect(http.StatusSeeOther, "/edit-post/"+c.Param("id"))
	case errors.Is(err, ErrNotFound):
		return RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
	case err != nil:
		return err
	}
	return c.Redirect(http.StatusSeeOther, postLink(id))
}

func (a *App) handleDeletePost(c echo.Context) error {
	id, err := postIDParam(c)
	if err != nil {
		return err
	}
	if err := a.Store.DeletePost(id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
		}
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/")
}
