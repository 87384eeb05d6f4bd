// Package desktop renders the dashboard shell. Every navigation runs the
// route guard against the latest session snapshot; the shell only translates
// the guard's decision into a view, it never decides authorization itself.
package desktop

import (
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	sentinel "github.com/danielcipriano1979/sentinel"
	"github.com/danielcipriano1979/sentinel/guard"
	"github.com/danielcipriano1979/sentinel/session"
)

// Route binds a navigation path to a view and its access requirement.
type Route struct {
	Path        string
	Title       string
	Requirement sentinel.RouteRequirement
	// AdminTree marks routes evaluated against the admin identity. Tenant
	// and admin routes never authorize each other.
	AdminTree bool
	// Render builds the route's content. Called only after the guard
	// allowed the route.
	Render func(nav Navigator) fyne.CanvasObject
}

// Navigator moves the shell between routes.
type Navigator interface {
	Navigate(path string)
}

// Options configures a Shell.
type Options struct {
	Title  string
	Width  float32
	Height float32
	Icon   fyne.Resource

	// App overrides the fyne application, for tests. When nil a real one is
	// created.
	App fyne.App

	Manager *session.Manager
	Routes  []Route

	// LoginPath and AdminLoginPath receive redirected unauthenticated
	// visitors for their respective trees.
	LoginPath      string
	AdminLoginPath string
	// DefaultPath is the safe landing route offered from the access-denied
	// view and used when a navigation target does not exist.
	DefaultPath string
	OnClose     func()
}

// Shell is the top-level window. It re-renders the current route whenever the
// session manager commits a state transition, so a principal resolving in the
// background replaces the loading placeholder without user action.
//
// Navigation happens on the UI goroutine while session watchers fire on
// resolver goroutines, so the target path is mutex-guarded and every render
// request is queued onto a single render loop. Window content is only ever
// set from that loop.
type Shell struct {
	app     fyne.App
	window  fyne.Window
	manager *session.Manager
	routes  map[string]Route
	options Options

	mu      sync.Mutex
	current string

	renders chan struct{}
}

// NewShell builds the window, wires the session subscription, and starts the
// render loop.
func NewShell(options Options) *Shell {
	a := options.App
	if a == nil {
		a = app.New()
	}
	w := a.NewWindow(options.Title)
	if options.Icon != nil {
		a.SetIcon(options.Icon)
		w.SetIcon(options.Icon)
	}
	if options.Width > 0 && options.Height > 0 {
		w.Resize(fyne.NewSize(options.Width, options.Height))
	}
	if options.OnClose != nil {
		w.SetCloseIntercept(func() {
			options.OnClose()
			w.Close()
		})
	}

	routes := make(map[string]Route, len(options.Routes))
	for _, route := range options.Routes {
		routes[route.Path] = route
	}

	s := &Shell{
		app:     a,
		window:  w,
		manager: options.Manager,
		routes:  routes,
		options: options,
		current: options.DefaultPath,
		renders: make(chan struct{}, 1),
	}
	go s.renderLoop()

	if options.Manager != nil {
		options.Manager.Subscribe(func(session.State) {
			s.requestRender()
		})
	}
	return s
}

// Navigate switches to the route at path and queues a guard re-evaluation.
// Safe to call from any goroutine.
func (s *Shell) Navigate(path string) {
	s.mu.Lock()
	if _, ok := s.routes[path]; !ok {
		path = s.options.DefaultPath
	}
	s.current = path
	s.mu.Unlock()
	s.requestRender()
}

// Run shows the window and blocks until it closes.
func (s *Shell) Run() {
	s.requestRender()
	s.window.ShowAndRun()
}

// Window exposes the underlying window for dialogs.
func (s *Shell) Window() fyne.Window {
	return s.window
}

// requestRender queues a render without blocking. A signal already pending
// coalesces with this one; the loop reads the latest state when it runs.
func (s *Shell) requestRender() {
	select {
	case s.renders <- struct{}{}:
	default:
	}
}

// renderLoop is the only goroutine that touches window content.
func (s *Shell) renderLoop() {
	for range s.renders {
		s.render()
	}
}

func (s *Shell) render() {
	s.mu.Lock()
	path := s.current
	s.mu.Unlock()

	route, ok := s.routes[path]
	if !ok {
		s.window.SetContent(container.NewCenter(widget.NewLabel("not found")))
		return
	}

	var state session.State
	if s.manager != nil {
		state = s.manager.Snapshot()
	}

	outcome := guard.Evaluate(state, route.Requirement)
	if route.AdminTree {
		outcome = guard.EvaluateAdmin(state, route.Requirement)
	}

	switch outcome {
	case guard.Loading:
		s.window.SetContent(loadingView())
	case guard.RedirectToLogin:
		login := s.options.LoginPath
		if route.AdminTree {
			login = s.options.AdminLoginPath
		}
		// Redirecting to a missing login route would loop; fall back to a
		// plain sign-in prompt instead.
		if target, ok := s.routes[login]; ok && target.Path != route.Path {
			s.mu.Lock()
			s.current = login
			s.mu.Unlock()
			s.render()
			return
		}
		s.window.SetContent(container.NewCenter(widget.NewLabel("sign in to continue")))
	case guard.Denied:
		s.window.SetContent(s.deniedView())
	default:
		s.window.SetContent(route.Render(s))
	}
}

func loadingView() fyne.CanvasObject {
	bar := widget.NewProgressBarInfinite()
	return container.NewCenter(container.NewVBox(widget.NewLabel("Loading…"), bar))
}

// deniedView tells an authenticated user their role does not admit the route
// and offers the safe default route as the way back.
func (s *Shell) deniedView() fyne.CanvasObject {
	back := widget.NewButton("Back to dashboard", func() {
		s.Navigate(s.options.DefaultPath)
	})
	return container.NewCenter(container.NewVBox(
		widget.NewLabel("You don't have access to this page."),
		back,
	))
}

// LoadIcon loads an app icon from disk.
func LoadIcon(path string) (fyne.Resource, error) {
	return fyne.LoadResourceFromPath(path)
}
