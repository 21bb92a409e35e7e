package inkwell

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

const invalidCredentialsMsg = "Invalid Credentials"

func (a *App) handleRegisterForm(c echo.Context) error {
	if CurrentPrincipal(c) != nil {
		return c.Redirect(http.StatusSeeOther, "/")
	}
	return Render(c, a.Views.Register(popFlash(c), CsrfToken(c)))
}

func (a *App) handleRegister(c echo.Context) error {
	if CurrentPrincipal(c) != nil {
		return c.Redirect(http.StatusSeeOther, "/")
	}
	var form RegisterForm
	if err := bindAndValidate(c, &form); err != nil {
		if err := addFlash(c, "Please provide a name, a valid email, and a password of at least 8 characters."); err != nil {
			return err
		}
		return c.Redirect(http.StatusSeeOther, "/register")
	}
	hash, err := HashPassword(form.Password)
	if err != nil {
		return err
	}
	user, err := a.Store.CreateUser(form.Email, hash, form.Name)
	if err != nil {
		if errors.Is(err, ErrEmailExists) {
			if err := addFlash(c, "Email already exists. Please login instead."); err != nil {
				return err
			}
			return c.Redirect(http.StatusSeeOther, "/login")
		}
		return err
	}
	if err := setPrincipalSession(c, user); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

func (a *App) handleLoginForm(c echo.Context) error {
	if CurrentPrincipal(c) != nil {
		return c.Redirect(http.StatusSeeOther, "/")
	}
	return Render(c, a.Views.Login(popFlash(c), CsrfToken(c)))
}

// handleLogin verifies credentials. A missing account and a wrong password
// produce the same user-visible message so the form cannot be used to
// enumerate registered emails.
func (a *App) handleLogin(c echo.Context) error {
	if CurrentPrincipal(c) != nil {
		return c.Redirect(http.StatusSeeOther, "/")
	}
	if !a.loginLimiter.Check(c.RealIP()) {
		return c.String(http.StatusTooManyRequests, "Too many login attempts. Try again later.")
	}
	var form LoginForm
	if err := bindAndValidate(c, &form); err != nil {
		a.loginLimiter.Record(c.RealIP())
		return Render(c, a.Views.Login(invalidCredentialsMsg, CsrfToken(c)))
	}
	user, err := a.Store.GetUserByEmail(form.Email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			a.loginLimiter.Record(c.RealIP())
			return Render(c, a.Views.Login(invalidCredentialsMsg, CsrfToken(c)))
		}
		return err
	}
	if !CheckPassword(user.PasswordHash, form.Password) {
		a.loginLimiter.Record(c.RealIP())
		return Render(c, a.Views.Login(invalidCredentialsMsg, CsrfToken(c)))
	}
	if err := setPrincipalSession(c, user); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

// handleLogout clears all session state. Logging out twice is harmless.
func (a *App) handleLogout(c echo.Context) error {
	if err := clearPrincipalSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/login")
}
