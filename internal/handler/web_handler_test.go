package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/prn-tf/bugtracker/internal/auth"
	"github.com/prn-tf/bugtracker/internal/cache/memory"
	"github.com/prn-tf/bugtracker/internal/domain"
	"github.com/prn-tf/bugtracker/internal/lock"
	"github.com/prn-tf/bugtracker/internal/metrics"
	"github.com/prn-tf/bugtracker/internal/repository"
	"github.com/prn-tf/bugtracker/internal/repository/sqlite"
	"github.com/prn-tf/bugtracker/internal/service"
	"github.com/prn-tf/bugtracker/internal/session"
	"github.com/prn-tf/bugtracker/internal/storage"
)

type testApp struct {
	srv   *httptest.Server
	users repository.UserRepository
	bugs  repository.BugRepository
	auth  *service.AuthService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	ctx := context.Background()
	logger := zerolog.Nop()
	dir := t.TempDir()

	db, err := sqlite.NewDB(ctx, sqlite.DefaultConfig(filepath.Join(dir, "bugs.db")), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(ctx))

	users := sqlite.NewUserRepository(db)
	bugs := sqlite.NewBugRepository(db)

	cache := memory.NewCache(time.Minute)
	t.Cleanup(func() { cache.Close() })

	uploads, err := storage.NewFilesystemBackend(filepath.Join(dir, "uploads"), "/uploads", storage.DefaultMaxSize, logger)
	require.NoError(t, err)

	m := metrics.New()
	authService := service.NewAuthService(users, service.AuthServiceConfig{
		Locker:     lock.NewMemoryLocker(),
		Metrics:    m,
		BcryptCost: bcrypt.MinCost,
	}, logger)
	sessions := session.NewManager(cache, []byte("test-secret-0123456789"), time.Hour, logger)
	mw := auth.NewMiddleware(sessions, authService, auth.DefaultConfig(), logger)

	web, err := NewWebHandler(WebConfig{
		AuthService: authService,
		BugService:  service.NewBugService(bugs, uploads, m, logger),
		UserService: service.NewUserService(users, m, logger),
		Sessions:    mw,
		Logger:      logger,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(NewRouter(RouterConfig{
		Web:          web,
		Health:       NewHealthHandler(db, "test", logger),
		Sessions:     mw,
		Metrics:      m,
		UploadDir:    uploads.Root(),
		UploadPrefix: uploads.URLPrefix(),
		Logger:       logger,
	}))
	t.Cleanup(srv.Close)

	return &testApp{srv: srv, users: users, bugs: bugs, auth: authService}
}

// addUser registers a user through the service and optionally promotes it.
func (a *testApp) addUser(t *testing.T, username string, isAdmin bool) *domain.User {
	t.Helper()
	ctx := context.Background()
	u, err := a.auth.Register(ctx, service.RegisterInput{Username: username, Password: "secret1", Password2: "secret1"})
	require.NoError(t, err)
	if isAdmin {
		require.NoError(t, a.users.UpdateRole(ctx, u.ID, true))
		u.IsAdmin = true
	}
	return u
}

func (a *testApp) addBug(t *testing.T, creator *domain.User) *domain.Bug {
	t.Helper()
	b := domain.NewBug("/products", "Add to cart does nothing", "", creator.Principal())
	require.NoError(t, a.bugs.Create(context.Background(), b))
	return b
}

// browser is a cookie-keeping client that does not follow redirects.
type browser struct {
	t      *testing.T
	app    *testApp
	client *http.Client
}

func (a *testApp) browser(t *testing.T) *browser {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{
		t:   t,
		app: a,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (b *browser) do(req *http.Request) (int, string, string) {
	b.t.Helper()
	resp, err := b.client.Do(req)
	require.NoError(b.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(b.t, err)
	return resp.StatusCode, resp.Header.Get("Location"), string(body)
}

func (b *browser) get(path string) (int, string, string) {
	req, err := http.NewRequest(http.MethodGet, b.app.srv.URL+path, nil)
	require.NoError(b.t, err)
	return b.do(req)
}

func (b *browser) postForm(path string, form url.Values) (int, string, string) {
	req, err := http.NewRequest(http.MethodPost, b.app.srv.URL+path, strings.NewReader(form.Encode()))
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func (b *browser) postMultipart(path string, fields map[string]string, filename string, content []byte) (int, string, string) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(b.t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("image", filename)
		require.NoError(b.t, err)
		_, err = fw.Write(content)
		require.NoError(b.t, err)
	}
	require.NoError(b.t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, b.app.srv.URL+path, &buf)
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return b.do(req)
}

// follow asserts a redirect to want and returns the body of the target page.
func (b *browser) follow(code int, location, want string) string {
	b.t.Helper()
	require.Equal(b.t, http.StatusFound, code)
	require.Equal(b.t, want, location)
	_, _, body := b.get(location)
	return body
}

func (b *browser) login(username string) {
	b.t.Helper()
	code, loc, _ := b.postForm("/login", url.Values{"username": {username}, "password": {"secret1"}})
	require.Equal(b.t, http.StatusFound, code)
	require.Equal(b.t, "/dashboard", loc)
}

func TestWeb_AnonymousIsSentToLogin(t *testing.T) {
	app := newTestApp(t)
	b := app.browser(t)

	for _, path := range []string{"/dashboard", "/bugs/new", "/admin"} {
		code, loc, _ := b.get(path)
		body := b.follow(code, loc, "/login")
		require.Contains(t, body, auth.MsgLoginRequired)
	}

	code, _, body := b.get("/")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "Log in")
}

func TestWeb_Register(t *testing.T) {
	app := newTestApp(t)
	b := app.browser(t)

	code, _, body := b.postForm("/register", url.Values{
		"username": {"bob"}, "password": {"abc"}, "password2": {"abd"},
	})
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, service.MsgPasswordMismatch)
	require.Contains(t, body, service.MsgPasswordTooShort)
	require.Contains(t, body, `value="bob"`)

	code, loc, _ := b.postForm("/register", url.Values{
		"username": {"bob"}, "password": {"secret1"}, "password2": {"secret1"},
	})
	body = b.follow(code, loc, "/login")
	require.Contains(t, body, MsgRegistered)

	code, _, body = b.postForm("/register", url.Values{
		"username": {"bob"}, "password": {"secret1"}, "password2": {"secret1"},
	})
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, service.MsgUsernameTaken)

	u, err := app.users.GetByUsername(context.Background(), "bob")
	require.NoError(t, err)
	require.False(t, u.IsAdmin)
}

func TestWeb_LoginLogout(t *testing.T) {
	app := newTestApp(t)
	app.addUser(t, "user1", false)
	b := app.browser(t)

	for _, form := range []url.Values{
		{"username": {"user1"}, "password": {"wrong"}},
		{"username": {"nobody"}, "password": {"secret1"}},
	} {
		code, loc, _ := b.postForm("/login", form)
		body := b.follow(code, loc, "/login")
		require.Contains(t, body, MsgInvalidLogin)
	}

	b.login("user1")

	code, loc, _ := b.get("/")
	require.Equal(t, http.StatusFound, code)
	require.Equal(t, "/dashboard", loc)

	code, _, body := b.get("/dashboard")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "user1")

	code, loc, _ = b.get("/logout")
	body = b.follow(code, loc, "/login")
	require.Contains(t, body, auth.MsgLoggedOut)

	code, loc, _ = b.get("/dashboard")
	require.Equal(t, http.StatusFound, code)
	require.Equal(t, "/login", loc)
}

func TestWeb_ReportBug(t *testing.T) {
	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{1}, 64)...)

	tests := []struct {
		name      string
		fields    map[string]string
		filename  string
		content   []byte
		wantLoc   string
		wantFlash string
		wantBugs  int
	}{
		{
			name:      "without image",
			fields:    map[string]string{"page": "/checkout", "description": "Pay button is dead"},
			wantLoc:   "/dashboard",
			wantFlash: MsgBugReported,
			wantBugs:  1,
		},
		{
			name:      "with image",
			fields:    map[string]string{"page": "/checkout", "description": "Pay button is dead"},
			filename:  "shot.png",
			content:   png,
			wantLoc:   "/dashboard",
			wantFlash: MsgBugReported,
			wantBugs:  1,
		},
		{
			name:      "oversized image",
			fields:    map[string]string{"page": "/checkout", "description": "Pay button is dead"},
			filename:  "big.png",
			content:   make([]byte, 6*1024*1024),
			wantLoc:   "/bugs/new",
			wantFlash: storage.MsgTooLarge,
		},
		{
			name:      "not an image",
			fields:    map[string]string{"page": "/checkout", "description": "Pay button is dead"},
			filename:  "notes.txt",
			content:   []byte("hello"),
			wantLoc:   "/bugs/new",
			wantFlash: storage.MsgUnsupportedType,
		},
		{
			name:      "missing description",
			fields:    map[string]string{"page": "/checkout"},
			wantLoc:   "/bugs/new",
			wantFlash: "Description is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t)
			app.addUser(t, "user1", false)
			b := app.browser(t)
			b.login("user1")

			code, loc, _ := b.postMultipart("/bugs", tt.fields, tt.filename, tt.content)
			body := b.follow(code, loc, tt.wantLoc)
			require.Contains(t, body, tt.wantFlash)

			bugs, err := app.bugs.ListAll(context.Background())
			require.NoError(t, err)
			require.Len(t, bugs, tt.wantBugs)

			if tt.wantBugs == 1 {
				bug := bugs[0]
				require.Equal(t, "user1", bug.CreatorUsername)
				require.Equal(t, domain.StatusOpen, bug.Status)
				if tt.filename == "" {
					require.Equal(t, domain.PlaceholderImageURL, bug.ImageURL)
					return
				}
				require.True(t, strings.HasPrefix(bug.ImageURL, "/uploads/"))
				code, _, served := b.get(bug.ImageURL)
				require.Equal(t, http.StatusOK, code)
				require.Equal(t, string(tt.content), served)
			}
		})
	}
}

func TestWeb_BugDetail(t *testing.T) {
	app := newTestApp(t)
	user1 := app.addUser(t, "user1", false)
	bug := app.addBug(t, user1)
	b := app.browser(t)
	b.login("user1")

	code, _, body := b.get("/bugs/" + bug.ID.String())
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "Add to cart does nothing")
	require.Contains(t, body, "Cancel this report")

	for _, path := range []string{"/bugs/0b8f5a52-8a4e-4c53-9d43-3a4f5c2f0d11", "/bugs/not-a-uuid"} {
		code, loc, _ := b.get(path)
		body := b.follow(code, loc, "/dashboard")
		require.Contains(t, body, MsgBugNotFound)
	}
}

func TestWeb_UpdateStatus(t *testing.T) {
	app := newTestApp(t)
	app.addUser(t, "admin", true)
	user1 := app.addUser(t, "user1", false)
	app.addUser(t, "user2", false)
	bug := app.addBug(t, user1)
	path := "/bugs/" + bug.ID.String() + "/status?_method=PUT"
	back := "/bugs/" + bug.ID.String()

	// user2 is neither creator nor admin.
	u2 := app.browser(t)
	u2.login("user2")
	code, loc, _ := u2.postForm(path, url.Values{"status": {"resolved"}})
	body := u2.follow(code, loc, back)
	require.Contains(t, body, MsgPermissionDenied)

	stored, err := app.bugs.GetByID(context.Background(), bug.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusOpen, stored.Status)
	require.Equal(t, bug.Version, stored.Version)

	// The creator may not resolve, only cancel.
	u1 := app.browser(t)
	u1.login("user1")
	code, loc, _ = u1.postForm(path, url.Values{"status": {"resolved"}})
	body = u1.follow(code, loc, back)
	require.Contains(t, body, MsgPermissionDenied)

	// The admin resolves.
	admin := app.browser(t)
	admin.login("admin")
	code, loc, _ = admin.postForm(path, url.Values{"status": {"resolved"}})
	body = admin.follow(code, loc, back)
	require.Contains(t, body, MsgStatusUpdated+"resolved")

	resolved, err := app.bugs.GetByID(context.Background(), bug.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusResolved, resolved.Status)
	require.True(t, resolved.UpdatedAt.After(bug.UpdatedAt))

	// A stale form is rejected.
	code, loc, _ = admin.postForm(path, url.Values{"status": {"open"}, "version": {"1"}})
	body = admin.follow(code, loc, back)
	require.Contains(t, body, "changed by someone else")

	// The creator cancels.
	code, loc, _ = u1.postForm(path, url.Values{"status": {"cancelled"}})
	body = u1.follow(code, loc, back)
	require.Contains(t, body, MsgStatusUpdated+"cancelled")
}

func TestWeb_Admin(t *testing.T) {
	app := newTestApp(t)
	admin := app.addUser(t, "admin", true)
	user1 := app.addUser(t, "user1", false)

	u1 := app.browser(t)
	u1.login("user1")
	code, loc, _ := u1.get("/admin")
	body := u1.follow(code, loc, "/dashboard")
	require.Contains(t, body, auth.MsgAdminRequired)

	a := app.browser(t)
	a.login("admin")
	code, _, body = a.get("/admin")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "user1")

	code, loc, _ = a.postForm("/users/"+admin.ID.String()+"/role?_method=PUT", url.Values{"isAdmin": {"false"}})
	body = a.follow(code, loc, "/admin")
	require.Contains(t, body, MsgOwnRole)

	code, loc, _ = a.postForm("/users/"+user1.ID.String()+"/role", url.Values{"_method": {"PUT"}, "isAdmin": {"true"}})
	body = a.follow(code, loc, "/admin")
	require.Contains(t, body, MsgRoleUpdated)

	promoted, err := app.users.GetByID(context.Background(), user1.ID)
	require.NoError(t, err)
	require.True(t, promoted.IsAdmin)

	// The promotion applies to user1's existing session.
	code, _, _ = u1.get("/admin")
	require.Equal(t, http.StatusOK, code)

	self, err := app.users.GetByID(context.Background(), admin.ID)
	require.NoError(t, err)
	require.True(t, self.IsAdmin)
}

func TestWeb_InfrastructureRoutes(t *testing.T) {
	app := newTestApp(t)
	b := app.browser(t)

	code, _, body := b.get("/health")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, `"status":"healthy"`)

	code, _, _ = b.get("/images/placeholder.png")
	require.Equal(t, http.StatusOK, code)

	code, _, body = b.get("/metrics")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "bugtracker_http_requests_total")
}
