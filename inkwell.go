// Package inkwell is a small multi-user blog application built with Go,
// Echo, and templ. Visitors read posts, registered users comment, and the
// first-registered account administers posts.
//
// Users provide their own templ components via the ViewFuncs struct, and
// inkwell handles the handler logic, sessions, authorization, and database
// operations.
package inkwell

import (
	"fmt"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
)

// ViewFuncs holds user-provided templ components that the framework calls
// when rendering pages. This is the inversion-of-control mechanism that
// lets users own and customize all templates.
type ViewFuncs struct {
	Home        func(posts []BlogPost, principal *User) templ.Component
	Post        func(post BlogPost, comments []Comment, principal *User, csrfToken string) templ.Component
	Register    func(flash string, csrfToken string) templ.Component
	Login       func(flash string, csrfToken string) templ.Component
	MakePost    func(post BlogPost, isEdit bool, flash string, csrfToken string) templ.Component
	About       func(principal *User) templ.Component
	Contact     func(principal *User) templ.Component
	NotFound    func() templ.Component
	Forbidden   func() templ.Component
	ServerError func() templ.Component
}

// App is the central inkwell application. It wires together the store,
// session handling, handlers, middleware, and user-provided templates.
type App struct {
	Config SiteConfig
	Echo   *echo.Echo
	Store  *Store
	Views  ViewFuncs

	loginLimiter *AttemptLimiter
	customRoutes []func(*App)
	staticDir    string
}

// New creates a new inkwell App with the given configuration and view functions.
func New(cfg SiteConfig, views ViewFuncs, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config:    cfg,
		Echo:      echo.New(),
		Views:     views,
		staticDir: "public",
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// init prepares the App without starting the server: it validates config,
// opens the store, and installs middleware and routes.
func (a *App) init() error {
	if a.Config.SessionSecret == "" {
		return fmt.Errorf("inkwell: SessionSecret is required")
	}

	store, err := NewStore(a.Config.DatabasePath)
	if err != nil {
		return fmt.Errorf("inkwell: init store: %w", err)
	}
	a.Store = store

	a.loginLimiter = NewAttemptLimiter(5, time.Minute)

	a.setupMiddleware()
	a.setupRoutes()

	for _, fn := range a.customRoutes {
		fn(a)
	}

	return nil
}

// Start initializes the database, middleware, and routes, then starts the
// HTTP server.
func (a *App) Start() error {
	if err := a.init(); err != nil {
		return err
	}
	if err := a.Echo.Start(a.Config.Addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	// Static assets
	e.Static("/public", a.staticDir)
	e.GET("/favicon.svg", a.handleFavicon)
	e.GET("/robots.txt", a.handleRobots)

	// Public pages
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)
	e.GET("/", a.handleHome)
	e.GET("/post/:id", a.handleShowPost)
	e.POST("/post/:id", a.handleAddComment)
	e.GET("/about", a.handleAbout)
	e.GET("/contact", a.handleContact)

	// Account routes
	e.GET("/register", a.handleRegisterForm)
	e.POST("/register", a.handleRegister)
	e.GET("/login", a.handleLoginForm)
	e.POST("/login", a.handleLogin)
	e.GET("/logout", a.handleLogout)

	// Post mutation routes, restricted to the admin account. The guard
	// middleware aborts forbidden requests before any handler runs.
	admin := e.Group("", requireAdmin)
	admin.GET("/new-post", a.handleNewPostForm)
	admin.POST("/new-post", a.handleCreatePost)
	admin.GET("/edit-post/:id", a.handleEditPostForm)
	admin.POST("/edit-post/:id", a.handleUpdatePost)
	admin.GET("/delete/:id", a.handleDeletePost)
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
