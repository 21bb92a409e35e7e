// Package views provides a plain-HTML implementation of inkwell.ViewFuncs
// so a site runs out of the box before it brings its own templ templates.
package views

import (
	"context"
	"fmt"
	"html"
	"io"
	"strconv"

	"github.com/a-h/templ"
	"github.com/eringen/inkwell"
)

// Default returns the built-in view functions for the given site config.
func Default(cfg inkwell.SiteConfig) inkwell.ViewFuncs {
	v := renderer{cfg: cfg}
	return inkwell.ViewFuncs{
		Home:        v.home,
		Post:        v.post,
		Register:    v.register,
		Login:       v.login,
		MakePost:    v.makePost,
		About:       v.about,
		Contact:     v.contact,
		NotFound:    v.errorPage("404", "Page not found"),
		Forbidden:   v.errorPage("403", "You are not allowed to do that"),
		ServerError: v.errorPage("500", "Something went wrong"),
	}
}

type renderer struct {
	cfg inkwell.SiteConfig
}

func esc(s string) string { return html.EscapeString(s) }

// page wraps body markup in the shared layout. The nav switches between
// login/register and new-post/logout based on the principal.
func (v renderer) page(title string, principal *inkwell.User, jsonLD string, body func(w io.Writer)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		fmt.Fprintf(w, `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1"><title>%s — %s</title>`, esc(title), esc(v.cfg.Name))
		if jsonLD != "" {
			fmt.Fprintf(w, `<script type="application/ld+json">%s</script>`, jsonLD)
		}
		fmt.Fprint(w, `<link rel="stylesheet" href="/public/styles.css"></head><body><nav><a href="/">`+esc(v.cfg.Name)+`</a> <a href="/about">About</a> <a href="/contact">Contact</a>`)
		if principal == nil {
			fmt.Fprint(w, ` <a href="/login">Login</a> <a href="/register">Register</a>`)
		} else {
			if principal.Admin {
				fmt.Fprint(w, ` <a href="/new-post">New Post</a>`)
			}
			fmt.Fprintf(w, ` <span>%s</span> <a href="/logout">Logout</a>`, esc(principal.Name))
		}
		fmt.Fprint(w, `</nav><main>`)
		body(w)
		_, err := fmt.Fprint(w, `</main></body></html>`)
		return err
	})
}

func flashBlock(w io.Writer, flash string) {
	if flash != "" {
		fmt.Fprintf(w, `<p class="flash">%s</p>`, esc(flash))
	}
}

func csrfField(w io.Writer, token string) {
	fmt.Fprintf(w, `<input type="hidden" name="_csrf" value="%s">`, esc(token))
}

func (v renderer) home(posts []inkwell.BlogPost, principal *inkwell.User) templ.Component {
	return v.page(v.cfg.Name, principal, inkwell.WebsiteJsonLD(v.cfg), func(w io.Writer) {
		fmt.Fprintf(w, `<h1>%s</h1><p>%s</p>`, esc(v.cfg.Name), esc(v.cfg.Description))
		for _, p := range posts {
			fmt.Fprintf(w, `<article><h2><a href="%s">%s</a></h2><h3>%s</h3><p>Posted by %s on %s</p>`,
				esc(p.Link), esc(p.Title), esc(p.Subtitle), esc(p.Author), esc(p.Date))
			if principal != nil && principal.Admin {
				fmt.Fprintf(w, `<a href="/edit-post/%d">Edit</a> <a href="/delete/%d">Delete</a>`, p.ID, p.ID)
			}
			fmt.Fprint(w, `</article>`)
		}
	})
}

func (v renderer) post(post inkwell.BlogPost, comments []inkwell.Comment, principal *inkwell.User, csrfToken string) templ.Component {
	return v.page(post.Title, principal, inkwell.BlogPostingJsonLD(post, v.cfg), func(w io.Writer) {
		if post.ImgURL != "" {
			fmt.Fprintf(w, `<img src="%s" alt="%s">`, esc(post.ImgURL), esc(post.Title))
		}
		fmt.Fprintf(w, `<h1>%s</h1><h2>%s</h2><p>Posted by %s on %s</p>`,
			esc(post.Title), esc(post.Subtitle), esc(post.Author), esc(post.Date))
		// Post bodies come from the rich-text editor and are stored as
		// trusted admin-authored HTML.
		fmt.Fprintf(w, `<div class="post-body">%s</div>`, post.Body)
		fmt.Fprint(w, `<section><h3>Comments</h3>`)
		for _, c := range comments {
			fmt.Fprintf(w, `<div class="comment"><img src="%s" alt=""><p>%s</p><cite>%s</cite></div>`,
				esc(inkwell.GravatarURL(c.AuthorEmail)), esc(c.Text), esc(c.AuthorName))
		}
		fmt.Fprintf(w, `<form method="post" action="%s">`, esc(post.Link))
		csrfField(w, csrfToken)
		fmt.Fprint(w, `<textarea name="comment" required></textarea><button type="submit">Submit Comment</button></form></section>`)
	})
}

func (v renderer) register(flash, csrfToken string) templ.Component {
	return v.page("Register", nil, "", func(w io.Writer) {
		fmt.Fprint(w, `<h1>Register</h1>`)
		flashBlock(w, flash)
		fmt.Fprint(w, `<form method="post" action="/register">`)
		csrfField(w, csrfToken)
		fmt.Fprint(w, `<input name="name" placeholder="Name" required>`+
			`<input name="email" type="email" placeholder="Email" required>`+
			`<input name="password" type="password" placeholder="Password" required>`+
			`<button type="submit">Sign Me Up</button></form>`)
	})
}

func (v renderer) login(flash, csrfToken string) templ.Component {
	return v.page("Login", nil, "", func(w io.Writer) {
		fmt.Fprint(w, `<h1>Login</h1>`)
		flashBlock(w, flash)
		fmt.Fprint(w, `<form method="post" action="/login">`)
		csrfField(w, csrfToken)
		fmt.Fprint(w, `<input name="email" type="email" placeholder="Email" required>`+
			`<input name="password" type="password" placeholder="Password" required>`+
			`<button type="submit">Let Me In</button></form>`)
	})
}

func (v renderer) makePost(post inkwell.BlogPost, isEdit bool, flash, csrfToken string) templ.Component {
	title := "New Post"
	action := "/new-post"
	if isEdit {
		title = "Edit Post"
		action = "/edit-post/" + strconv.FormatInt(post.ID, 10)
	}
	return v.page(title, nil, "", func(w io.Writer) {
		fmt.Fprintf(w, `<h1>%s</h1>`, esc(title))
		flashBlock(w, flash)
		fmt.Fprintf(w, `<form method="post" action="%s">`, esc(action))
		csrfField(w, csrfToken)
		fmt.Fprintf(w, `<input name="title" placeholder="Title" value="%s" required>`, esc(post.Title))
		fmt.Fprintf(w, `<input name="subtitle" placeholder="Subtitle" value="%s" required>`, esc(post.Subtitle))
		fmt.Fprintf(w, `<input name="img_url" type="url" placeholder="Image URL" value="%s">`, esc(post.ImgURL))
		fmt.Fprintf(w, `<textarea name="body" required>%s</textarea>`, esc(post.Body))
		fmt.Fprint(w, `<button type="submit">Submit Post</button></form>`)
	})
}

func (v renderer) about(principal *inkwell.User) templ.Component {
	return v.page("About", principal, "", func(w io.Writer) {
		fmt.Fprintf(w, `<h1>About</h1><p>%s</p>`, esc(v.cfg.Description))
	})
}

func (v renderer) contact(principal *inkwell.User) templ.Component {
	return v.page("Contact", principal, "", func(w io.Writer) {
		fmt.Fprint(w, `<h1>Contact</h1><p>Have questions? We have answers. Send us an email and we will get back to you.</p>`)
	})
}

func (v renderer) errorPage(code, message string) func() templ.Component {
	return func() templ.Component {
		return v.page(code, nil, "", func(w io.Writer) {
			fmt.Fprintf(w, `<h1>%s</h1><p>%s</p><p><a href="/">Back home</a></p>`, esc(code), esc(message))
		})
	}
}
