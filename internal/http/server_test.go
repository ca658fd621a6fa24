package http

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	stdhttp "net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	appdb "tinywiki/app/internal/db"
	"tinywiki/app/internal/wiki"
)

const testHomePage = "home-page"

func newTestServer(t *testing.T) *Server {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	conn, err := appdb.Open(appdb.Options{
		Path:   filepath.Join(t.TempDir(), "wiki.db"),
		Logger: appdb.NewGormLogger(logger),
	})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { _ = appdb.Close(conn) })

	if err := wiki.Migrate(context.Background(), conn, logger); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	pages, err := wiki.NewPageRepository(conn, logger)
	if err != nil {
		t.Fatalf("building page repository: %v", err)
	}
	users, err := wiki.NewUserRepository(conn, logger)
	if err != nil {
		t.Fatalf("building user repository: %v", err)
	}
	blobs, err := wiki.NewBlobStore(conn, logger)
	if err != nil {
		t.Fatalf("building blob store: %v", err)
	}

	store, err := wiki.NewStore(wiki.StoreOptions{
		Pages:  pages,
		Users:  users,
		Blobs:  blobs,
		Cache:  wiki.NewListingCache(),
		Logger: logger,
	})
	if err != nil {
		t.Fatalf("creating content store: %v", err)
	}

	srv, err := NewServer(Options{
		Store:        store,
		HomePageName: testHomePage,
		Logger:       logger,
	})
	if err != nil {
		t.Fatalf("creating server: %v", err)
	}

	return srv
}

func savePage(t *testing.T, srv *Server, name, content string) *wiki.Page {
	t.Helper()

	page, err := srv.store.SavePage(context.Background(), wiki.PageInput{
		Name:    name,
		Content: content,
	})
	if err != nil {
		t.Fatalf("saving page %q: %v", name, err)
	}
	return page
}

func sessionCookie(t *testing.T, srv *Server, username string) *stdhttp.Cookie {
	t.Helper()

	rec := httptest.NewRecorder()
	if err := srv.sessions.Issue(rec, username); err != nil {
		t.Fatalf("issuing session: %v", err)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("expected a session cookie to be issued")
	}
	return cookies[0]
}

func contains(haystack, needle string) bool {
	return strings.Contains(haystack, needle)
}

func TestHomeRouteRedirectsWhenHomePageMissing(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != stdhttp.StatusFound {
		t.Fatalf("expected status 302, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/"+testHomePage {
		t.Fatalf("expected redirect to home page, got %q", loc)
	}
}

func TestHomeRouteRendersExistingHomePage(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	savePage(t, srv, testHomePage, "# Welcome\n\nHello there.")

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); !contains(body, "Hello there.") {
		t.Fatalf("expected rendered content in body, got %q", body)
	}
}

func TestPageRouteRendersMarkdownAsHTML(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	savePage(t, srv, "Getting Started", "**bold move**")

	req := httptest.NewRequest("GET", "/getting-started", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); !contains(body, "<strong>bold move</strong>") {
		t.Fatalf("expected bold markdown rendered, got %q", body)
	}
}

func TestPageRouteSanitizesStoredMarkup(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	savePage(t, srv, "scripted", "hello <script>alert(1)</script> world")

	req := httptest.NewRequest("GET", "/scripted", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if body := rec.Body.String(); contains(body, "<script>alert(1)</script>") {
		t.Fatalf("expected script tags to be stripped, got %q", body)
	}
}

func TestUnknownPageRedirectsAnonymousToLogin(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	req := httptest.NewRequest("GET", "/no-such-page", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != stdhttp.StatusFound {
		t.Fatalf("expected status 302, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/auth/login" {
		t.Fatalf("expected redirect to login, got %q", loc)
	}
}

func TestUnknownPageOpensEditorForAuthors(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	req := httptest.NewRequest("GET", "/brand-new-page", nil)
	req.AddCookie(sessionCookie(t, srv, "alice"))
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !contains(body, `action="/brand-new-page"`) {
		t.Fatalf("expected editor form for the new page, got %q", body)
	}
}

func TestEditRouteRequiresLogin(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	savePage(t, srv, "locked", "content")

	req := httptest.NewRequest("GET", "/edit?pageName=locked", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != stdhttp.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if body := rec.Body.String(); !contains(body, "Access Denied") {
		t.Fatalf("expected access denied message, got %q", body)
	}
}

func TestEditRouteHidesDeleteForHomePage(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	savePage(t, srv, testHomePage, "welcome")

	req := httptest.NewRequest("GET", "/edit?pageName="+testHomePage, nil)
	req.AddCookie(sessionCookie(t, srv, "alice"))
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); contains(body, "Delete Page") {
		t.Fatalf("expected no delete button for home page, got %q", body)
	}
}

func TestSavePageRoundTrip(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	_ = form.WriteField("Name", "My New Page")
	_ = form.WriteField("Content", "some words")
	_ = form.Close()

	req := httptest.NewRequest("POST", "/my-new-page", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.AddCookie(sessionCookie(t, srv, "alice"))
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != stdhttp.StatusFound {
		t.Fatalf("expected status 302, got %d: %s", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); loc != "/my-new-page" {
		t.Fatalf("expected redirect to the saved page, got %q", loc)
	}

	page, err := srv.store.GetPage(context.Background(), "my-new-page")
	if err != nil {
		t.Fatalf("loading saved page: %v", err)
	}
	if page == nil || page.Content != "some words" {
		t.Fatalf("expected persisted page content, got %+v", page)
	}
}

func TestSavePageWithAttachment(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	_ = form.WriteField("Name", "with-file")
	_ = form.WriteField("Content", "see attachment")
	part, err := form.CreateFormFile("Attachment", "notes.txt")
	if err != nil {
		t.Fatalf("creating form file: %v", err)
	}
	_, _ = part.Write([]byte("attached bytes"))
	_ = form.Close()

	req := httptest.NewRequest("POST", "/with-file", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.AddCookie(sessionCookie(t, srv, "alice"))
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != stdhttp.StatusFound {
		t.Fatalf("expected status 302, got %d: %s", rec.Code, rec.Body.String())
	}

	page, err := srv.store.GetPage(context.Background(), "with-file")
	if err != nil {
		t.Fatalf("loading saved page: %v", err)
	}
	if page == nil || len(page.Attachments) != 1 {
		t.Fatalf("expected one attachment, got %+v", page)
	}

	fileReq := httptest.NewRequest("GET", "/attachment?fileId="+page.Attachments[0].FileID, nil)
	fileRec := httptest.NewRecorder()
	srv.ServeHTTP(fileRec, fileReq)

	if fileRec.Code != stdhttp.StatusOK {
		t.Fatalf("expected status 200, got %d", fileRec.Code)
	}
	if fileRec.Body.String() != "attached bytes" {
		t.Fatalf("expected attachment payload, got %q", fileRec.Body.String())
	}
}

func TestSavePageRejectsEmptyContent(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	_ = form.WriteField("Name", "half-baked")
	_ = form.WriteField("Content", "   ")
	_ = form.Close()

	req := httptest.NewRequest("POST", "/half-baked", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.AddCookie(sessionCookie(t, srv, "alice"))
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("expected the editor re-rendered with status 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); !contains(body, "Content is required") {
		t.Fatalf("expected validation message, got %q", body)
	}

	page, err := srv.store.GetPage(context.Background(), "half-baked")
	if err != nil {
		t.Fatalf("checking page: %v", err)
	}
	if page != nil {
		t.Fatalf("expected invalid page not to be persisted, got %+v", page)
	}
}

func TestSavePageRejectsHomePageRename(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	home := savePage(t, srv, testHomePage, "welcome")

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	_ = form.WriteField("Id", formatUint(home.ID))
	_ = form.WriteField("Name", "renamed-home")
	_ = form.WriteField("Content", "welcome")
	_ = form.Close()

	req := httptest.NewRequest("POST", "/"+testHomePage, &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.AddCookie(sessionCookie(t, srv, "alice"))
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("expected the editor re-rendered with status 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); !contains(body, "cannot modify the home page name") {
		t.Fatalf("expected rename rejection message, got %q", body)
	}

	current, err := srv.store.GetPage(context.Background(), testHomePage)
	if err != nil {
		t.Fatalf("loading home page: %v", err)
	}
	if current == nil || current.ID != home.ID {
		t.Fatalf("expected home page untouched, got %+v", current)
	}
}

func TestDeletePageRoute(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	page := savePage(t, srv, "doomed", "short lived")

	form := url.Values{"Id": {formatUint(page.ID)}}
	req := httptest.NewRequest("POST", "/delete-page", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(sessionCookie(t, srv, "alice"))
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != stdhttp.StatusFound {
		t.Fatalf("expected status 302, got %d", rec.Code)
	}

	remaining, err := srv.store.GetPage(context.Background(), "doomed")
	if err != nil {
		t.Fatalf("checking deleted page: %v", err)
	}
	if remaining != nil {
		t.Fatalf("expected page to be gone, got %+v", remaining)
	}
}

func TestDeletePageRouteProtectsHomePage(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	home := savePage(t, srv, testHomePage, "welcome")

	form := url.Values{"Id": {formatUint(home.ID)}}
	req := httptest.NewRequest("POST", "/delete-page", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(sessionCookie(t, srv, "alice"))
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != stdhttp.StatusFound {
		t.Fatalf("expected status 302, got %d", rec.Code)
	}

	current, err := srv.store.GetPage(context.Background(), testHomePage)
	if err != nil {
		t.Fatalf("loading home page: %v", err)
	}
	if current == nil {
		t.Fatal("expected home page to survive the delete request")
	}
}

func TestAttachmentRouteReturns404ForUnknownFile(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	req := httptest.NewRequest("GET", "/attachment?fileId=nope", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != stdhttp.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}

func TestRegisterThenLogin(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	register := url.Values{
		"username":        {"alice"},
		"password":        {"correct-horse"},
		"confirmPassword": {"correct-horse"},
	}
	req := httptest.NewRequest("POST", "/auth/register", strings.NewReader(register.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != stdhttp.StatusFound {
		t.Fatalf("expected status 302, got %d: %s", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); loc != "/auth/login" {
		t.Fatalf("expected redirect to login, got %q", loc)
	}

	login := url.Values{"username": {"alice"}, "password": {"correct-horse"}}
	loginReq := httptest.NewRequest("POST", "/auth/login", strings.NewReader(login.Encode()))
	loginReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	loginRec := httptest.NewRecorder()

	srv.ServeHTTP(loginRec, loginReq)

	if loginRec.Code != stdhttp.StatusFound {
		t.Fatalf("expected status 302, got %d: %s", loginRec.Code, loginRec.Body.String())
	}

	var session *stdhttp.Cookie
	for _, cookie := range loginRec.Result().Cookies() {
		if cookie.Name == sessionCookieName {
			session = cookie
		}
	}
	if session == nil || session.Value == "" {
		t.Fatal("expected a session cookie after login")
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	if _, err := srv.store.Register(context.Background(), "bob", "actual-password"); err != nil {
		t.Fatalf("registering user: %v", err)
	}

	login := url.Values{"username": {"bob"}, "password": {"guessed-wrong"}}
	req := httptest.NewRequest("POST", "/auth/login", strings.NewReader(login.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("expected the login form re-rendered with status 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); !contains(body, "The password is not correct") {
		t.Fatalf("expected password error message, got %q", body)
	}
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	register := url.Values{
		"username":        {"carol"},
		"password":        {"short"},
		"confirmPassword": {"short"},
	}
	req := httptest.NewRequest("POST", "/auth/register", strings.NewReader(register.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("expected the register form re-rendered with status 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); !contains(body, "at least 8 characters") {
		t.Fatalf("expected password length message, got %q", body)
	}
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	if _, err := srv.store.Register(context.Background(), "dave", "first-password"); err != nil {
		t.Fatalf("registering user: %v", err)
	}

	register := url.Values{
		"username":        {"dave"},
		"password":        {"second-password"},
		"confirmPassword": {"second-password"},
	}
	req := httptest.NewRequest("POST", "/auth/register", strings.NewReader(register.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("expected the register form re-rendered with status 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); !contains(body, "already taken") {
		t.Fatalf("expected duplicate username message, got %q", body)
	}
}

func TestLogoutClearsSession(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	req := httptest.NewRequest("POST", "/auth/logout", nil)
	req.AddCookie(sessionCookie(t, srv, "alice"))
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != stdhttp.StatusFound {
		t.Fatalf("expected status 302, got %d", rec.Code)
	}

	var cleared *stdhttp.Cookie
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == sessionCookieName {
			cleared = cookie
		}
	}
	if cleared == nil || cleared.MaxAge >= 0 {
		t.Fatalf("expected the session cookie to be expired, got %+v", cleared)
	}
}

func formatUint(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
