package inkwell

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// RegisterForm carries the sign-up fields. bcrypt rejects passwords over
// 72 bytes, so cap the length here rather than surfacing a hash error.
type RegisterForm struct {
	Name     string `form:"name" validate:"required,min=2,max=100"`
	Email    string `form:"email" validate:"required,email,max=100"`
	Password string `form:"password" validate:"required,min=8,max=72"`
}

// LoginForm carries the sign-in fields.
type LoginForm struct {
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required"`
}

// PostForm carries the new-post and edit-post fields.
type PostForm struct {
	Title    string `form:"title" validate:"required,max=250"`
	Subtitle string `form:"subtitle" validate:"required,max=250"`
	Body     string `form:"body" validate:"required"`
	ImgURL   string `form:"img_url" validate:"omitempty,url,max=250"`
}

// CommentForm carries the single comment field on the post page.
type CommentForm struct {
	Text string `form:"comment" validate:"required,max=500"`
}

// bindAndValidate binds the request form into dst and validates it.
func bindAndValidate(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return err
	}
	return validate.Struct(dst)
}
