package handler

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/bugtracker/internal/domain"
	"github.com/prn-tf/bugtracker/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

const layoutTemplate = "templates/layout.html"

// templateFuncs are available to every page.
var templateFuncs = template.FuncMap{
	"formatTime": func(t time.Time) string {
		return t.Local().Format("Jan 2, 2006 15:04")
	},
	"truncate": func(s string, n int) string {
		r := []rune(s)
		if len(r) <= n {
			return s
		}
		return string(r[:n]) + "..."
	},
	"searchText": func(b *domain.Bug) string {
		return strings.ToLower(b.Page + " " + b.Description + " " + b.CreatorUsername)
	},
}

// =============================================================================
// Template Data Structs
// =============================================================================

// PageData contains common page data.
type PageData struct {
	Title   string
	User    *domain.Principal
	Flashes []session.Flash
	Errors  []string
}

// RegisterPageData re-renders the form with the submitted username.
type RegisterPageData struct {
	PageData
	Username string
}

// DashboardPageData lists all bugs.
type DashboardPageData struct {
	PageData
	Bugs     []*domain.Bug
	Statuses []domain.BugStatus
}

// NewBugPageData contains the report form settings.
type NewBugPageData struct {
	PageData
	MaxUploadMB int64
}

// BugDetailPageData shows one bug and the status controls the viewer may use.
type BugDetailPageData struct {
	PageData
	Bug       *domain.Bug
	Statuses  []domain.BugStatus
	CanTriage bool
	CanCancel bool
}

// AdminUserRow is a user in the admin table.
type AdminUserRow struct {
	*domain.User
	IsSelf bool
}

// AdminPageData lists bugs and users for triage.
type AdminPageData struct {
	PageData
	Bugs  []*domain.Bug
	Users []AdminUserRow
}

// renderer executes embedded page templates inside the shared layout.
type renderer struct {
	pages  map[string]*template.Template
	logger zerolog.Logger
}

func newRenderer(logger zerolog.Logger) (*renderer, error) {
	files, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	pages := make(map[string]*template.Template, len(files))
	for _, file := range files {
		if file == layoutTemplate {
			continue
		}
		tmpl, err := template.New(path.Base(file)).Funcs(templateFuncs).ParseFS(templateFS, layoutTemplate, file)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", file, err)
		}
		pages[path.Base(file)] = tmpl
	}

	return &renderer{pages: pages, logger: logger}, nil
}

// render writes page with status. Output is buffered so a template error
// never leaves a half-written page.
func (rd *renderer) render(w http.ResponseWriter, status int, name string, data any) {
	tmpl, ok := rd.pages[name]
	if !ok {
		rd.logger.Error().Str("template", name).Msg("unknown template")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		rd.logger.Error().Err(err).Str("template", name).Msg("failed to render template")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// staticAssets returns the embedded /images and /js tree.
func staticAssets() http.FileSystem {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}
