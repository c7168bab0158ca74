package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PhoneVerse/internal/config"
	"PhoneVerse/internal/domain"
	"PhoneVerse/internal/infrastructure/imagery"
	"PhoneVerse/internal/infrastructure/storage"
	"PhoneVerse/internal/infrastructure/uploads"
	"PhoneVerse/internal/rewrite"
	"PhoneVerse/internal/usecase"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type emptySource struct{}

func (emptySource) FetchAll(context.Context) ([]domain.NewsItem, error) { return nil, nil }

type testEnv struct {
	router     *gin.Engine
	store      *storage.Store
	publisher  *usecase.Publisher
	auth       *usecase.AuthService
	automation *usecase.AutomationController
	staticDir  string
	uploadDir  string
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	store, err := storage.Open(ctx, storage.DriverSQLite, filepath.Join(dir, "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	publisher := usecase.NewPublisher(config.PublishingConfig{TitlePrefixLength: 40, SlugMaxLength: 80},
		usecase.PublisherDeps{Articles: store, Users: store})
	auth, err := usecase.NewAuthService(config.AuthConfig{JWTSecret: "test-secret", TokenTTL: time.Hour, BcryptCost: 4},
		usecase.AuthDeps{Users: store, Sessions: store})
	require.NoError(t, err)
	resolver := imagery.NewPicsumResolver("")
	automation := usecase.NewAutomationController(config.AutomationConfig{MaxSavedPerRun: 5, MaxAttemptsPerRun: 10},
		usecase.AutomationDeps{
			Source:    emptySource{},
			Rewriter:  rewrite.NewTemplateRewriter(func(int) int { return 0 }),
			Images:    resolver,
			Publisher: publisher,
		})
	t.Cleanup(automation.Wait)

	static := filepath.Join(dir, "public")
	require.NoError(t, os.MkdirAll(static, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(static, "index.html"), []byte("<html>spa</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(static, "app.js"), []byte("console.log(1)"), 0o644))

	router := NewRouter(Deps{
		Server:     config.ServerConfig{StaticDir: static, MaxUploadBytes: 1 << 20},
		TokenTTL:   time.Hour,
		Articles:   store,
		Publisher:  publisher,
		Automation: automation,
		Auth:       auth,
		Uploads:    uploads.NewLocalStore(filepath.Join(dir, "uploads"), "/uploads"),
		UploadDir:  filepath.Join(dir, "uploads"),
		UploadPath: "/uploads",
		Images:     resolver,
		Ping:       store.Ping,
	})
	return &testEnv{
		router:     router,
		store:      store,
		publisher:  publisher,
		auth:       auth,
		automation: automation,
		staticDir:  static,
		uploadDir:  filepath.Join(dir, "uploads"),
	}
}

func (e *testEnv) do(t *testing.T, method, target, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) doJSON(t *testing.T, method, target, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	return e.do(t, method, target, token, body, "application/json")
}

func (e *testEnv) login(t *testing.T, username string, role domain.Role) (domain.User, string) {
	t.Helper()
	ctx := context.Background()
	user, err := e.auth.Register(ctx, usecase.RegisterInput{
		Username: username,
		Email:    username + "@example.test",
		Password: "secret123",
		Role:     role,
	})
	require.NoError(t, err)
	res, err := e.auth.Login(ctx, username, "secret123")
	require.NoError(t, err)
	return user, res.Token
}

func (e *testEnv) publish(t *testing.T, title string, approve bool) domain.Article {
	t.Helper()
	ctx := context.Background()
	a, err := e.publisher.Publish(ctx, usecase.Draft{Title: title, Content: "<p>body</p>", Category: domain.CategoryReviews})
	require.NoError(t, err)
	require.NotNil(t, a)
	if approve {
		approved, err := e.publisher.Approve(ctx, a.ID, 0)
		require.NoError(t, err)
		return approved
	}
	return *a
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestPublicListingsOnlyShowVisibleArticles(t *testing.T) {
	t.Parallel()
	env := newEnv(t)
	env.publish(t, "Visible phone review", true)
	env.publish(t, "Hidden pending review", false)

	rec := env.do(t, http.MethodGet, "/api/articles?limit=500", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]domain.Article](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "Visible phone review", list[0].Title)

	rec = env.do(t, http.MethodGet, "/api/category/guides", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/search?q=phone", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.Article](t, rec), 1)

	rec = env.do(t, http.MethodGet, "/api/search", "", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Search query required"}`, rec.Body.String())
}

func TestGetArticleCountsViews(t *testing.T) {
	t.Parallel()
	env := newEnv(t)
	visible := env.publish(t, "Counted article", true)
	hidden := env.publish(t, "Pending article", false)

	for i := 1; i <= 2; i++ {
		rec := env.do(t, http.MethodGet, "/api/articles/"+visible.Slug, "", nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, int64(i), decode[domain.Article](t, rec).ViewCount)
	}

	rec := env.do(t, http.MethodGet, "/api/articles/"+hidden.Slug, "", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuthFlow(t *testing.T) {
	t.Parallel()
	env := newEnv(t)

	rec := env.doJSON(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "reader", "email": "reader@example.test", "password": "secret123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.doJSON(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "reader", "email": "other@example.test", "password": "secret123",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.doJSON(t, http.MethodPost, "/api/auth/register", "", map[string]string{"username": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.doJSON(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "reader", "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.doJSON(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "reader@example.test", "password": "secret123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == cookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	token := decode[struct {
		Token string `json:"token"`
	}](t, rec).Token
	assert.Equal(t, token, cookie.Value)

	// The cookie alone authenticates.
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(cookie)
	me := httptest.NewRecorder()
	env.router.ServeHTTP(me, req)
	require.Equal(t, http.StatusOK, me.Code)
	assert.Contains(t, me.Body.String(), `"username":"reader"`)
	assert.NotContains(t, me.Body.String(), "password")

	rec = env.doJSON(t, http.MethodPut, "/api/auth/profile", token, map[string]string{"bio": "likes phones"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "likes phones")

	rec = env.do(t, http.MethodPost, "/api/auth/logout", token, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/auth/me", token, nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/auth/me", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSuspendedLoginIsRejected(t *testing.T) {
	t.Parallel()
	env := newEnv(t)
	user, token := env.login(t, "mallory", domain.RoleUser)
	require.NoError(t, env.auth.SetStatus(context.Background(), user.ID, domain.UserSuspended))

	rec := env.do(t, http.MethodGet, "/api/auth/me", token, nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.doJSON(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "mallory", "password": "secret123"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"account suspended"}`, rec.Body.String())
}

func submitForm(t *testing.T, fields map[string]string, img []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if img != nil {
		part, err := w.CreateFormFile("image", "photo.bin")
		require.NoError(t, err)
		_, err = part.Write(img)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return buf.Bytes()
}

func TestSubmitArticle(t *testing.T) {
	t.Parallel()
	env := newEnv(t)
	user, token := env.login(t, "writer", domain.RoleUser)

	fields := map[string]string{
		"title":    "My Pixel 10 week",
		"content":  "First <b>impressions</b>.\n\nSecond paragraph.",
		"category": domain.CategoryReviews,
	}
	body, ct := submitForm(t, fields, pngBytes(t))
	rec := env.do(t, http.MethodPost, "/api/user/submit-article", token, body, ct)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decode[struct {
		Article domain.Article `json:"article"`
	}](t, rec).Article
	assert.Equal(t, domain.StatusDraft, created.Status)
	assert.Equal(t, domain.ApprovalPending, created.ApprovalStatus)
	assert.True(t, created.IsManual)
	assert.Equal(t, "<p>First &lt;b&gt;impressions&lt;/b&gt;.</p>\n<p>Second paragraph.</p>", created.Content)
	require.NotNil(t, created.AuthorID)
	assert.Equal(t, user.ID, *created.AuthorID)
	assert.True(t, strings.HasPrefix(created.FeaturedImage, "/uploads/"))
	assert.True(t, strings.HasSuffix(created.FeaturedImage, ".png"))

	served := env.do(t, http.MethodGet, created.FeaturedImage, "", nil, "")
	assert.Equal(t, http.StatusOK, served.Code)

	// Same title again is a duplicate.
	body, ct = submitForm(t, fields, nil)
	rec = env.do(t, http.MethodPost, "/api/user/submit-article", token, body, ct)
	assert.Equal(t, http.StatusConflict, rec.Code)

	fields["title"] = "Text only submission"
	body, ct = submitForm(t, fields, []byte("plain text is not an image"))
	rec = env.do(t, http.MethodPost, "/api/user/submit-article", token, body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body, ct = submitForm(t, fields, nil)
	rec = env.do(t, http.MethodPost, "/api/user/submit-article", token, body, ct)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "picsum.photos")

	body, ct = submitForm(t, map[string]string{"title": "No body"}, nil)
	rec = env.do(t, http.MethodPost, "/api/user/submit-article", token, body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/user/articles", token, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.Article](t, rec), 2)
}

func TestSubmitArticleDuplicateStoresNoImage(t *testing.T) {
	t.Parallel()
	env := newEnv(t)
	_, token := env.login(t, "writer", domain.RoleUser)

	fields := map[string]string{
		"title":    "Galaxy S26 camera notes",
		"content":  "Low light is much better.",
		"category": domain.CategoryReviews,
	}
	body, ct := submitForm(t, fields, pngBytes(t))
	rec := env.do(t, http.MethodPost, "/api/user/submit-article", token, body, ct)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	entries, err := os.ReadDir(env.uploadDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	for _, title := range []string{"Galaxy S26 camera notes", "  Galaxy  S26 camera notes "} {
		fields["title"] = title
		body, ct = submitForm(t, fields, pngBytes(t))
		rec = env.do(t, http.MethodPost, "/api/user/submit-article", token, body, ct)
		assert.Equal(t, http.StatusConflict, rec.Code, title)
	}

	entries, err = os.ReadDir(env.uploadDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSubmitArticleExcerpt(t *testing.T) {
	t.Parallel()
	env := newEnv(t)
	_, token := env.login(t, "writer", domain.RoleUser)

	content := strings.Repeat("Battery life easily lasts two full days.\n\n", 12)
	body, ct := submitForm(t, map[string]string{
		"title":    "Two day battery phone",
		"content":  content,
		"category": domain.CategoryReviews,
	}, nil)
	rec := env.do(t, http.MethodPost, "/api/user/submit-article", token, body, ct)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decode[struct {
		Article domain.Article `json:"article"`
	}](t, rec).Article
	assert.Equal(t, 155, utf8.RuneCountInString(created.Excerpt))
	assert.Equal(t, rewrite.Excerpt(content), created.Excerpt)
	assert.False(t, strings.HasSuffix(created.Excerpt, "..."))
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	t.Parallel()
	env := newEnv(t)
	_, userToken := env.login(t, "plain", domain.RoleUser)

	rec := env.do(t, http.MethodGet, "/api/admin/stats", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/admin/stats", userToken, nil, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminModeration(t *testing.T) {
	t.Parallel()
	env := newEnv(t)
	admin, token := env.login(t, "root", domain.RoleAdmin)
	pending := env.publish(t, "Needs a look", false)
	doomed := env.publish(t, "To be removed", false)

	rec := env.do(t, http.MethodGet, "/api/admin/pending-review", token, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.Article](t, rec), 2)

	rec = env.do(t, http.MethodPost, "/api/admin/approve/"+itoa(pending.ID), token, nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	approved := decode[struct {
		Article domain.Article `json:"article"`
	}](t, rec).Article
	assert.Equal(t, domain.StatusPublished, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, admin.ID, *approved.ApprovedBy)

	rec = env.doJSON(t, http.MethodPost, "/api/admin/reject/"+itoa(doomed.ID), token, map[string]string{"reason": "thin"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/admin/articles/"+itoa(doomed.ID), token, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/admin/delete/"+itoa(doomed.ID), token, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/admin/approve/9999", token, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/admin/approve/abc", token, nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/admin/stats", token, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[domain.SiteStats](t, rec)
	assert.Equal(t, int64(1), stats.TotalArticles)
	assert.Equal(t, int64(1), stats.PublishedArticles)

	rec = env.do(t, http.MethodGet, "/api/admin/all", token, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.Article](t, rec), 1)
}

func TestAdminUserManagement(t *testing.T) {
	t.Parallel()
	env := newEnv(t)
	admin, token := env.login(t, "root", domain.RoleAdmin)
	user, userToken := env.login(t, "member", domain.RoleUser)

	rec := env.do(t, http.MethodGet, "/api/admin/users", token, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.User](t, rec), 2)

	rec = env.do(t, http.MethodGet, "/api/admin/users/"+itoa(user.ID), token, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "member", decode[domain.User](t, rec).Username)

	rec = env.doJSON(t, http.MethodPut, "/api/admin/users/"+itoa(user.ID)+"/status", token, map[string]string{"status": "banned"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = env.doJSON(t, http.MethodPut, "/api/admin/users/"+itoa(user.ID)+"/status", token, map[string]string{"status": "suspended"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/auth/me", userToken, nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.doJSON(t, http.MethodPut, "/api/admin/users/"+itoa(user.ID)+"/role", token, map[string]string{"role": "admin"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/admin/users/"+itoa(admin.ID), token, nil, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = env.do(t, http.MethodDelete, "/api/admin/users/"+itoa(user.ID), token, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/admin/users/"+itoa(user.ID), token, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminAutomationControl(t *testing.T) {
	t.Parallel()
	env := newEnv(t)
	_, token := env.login(t, "root", domain.RoleAdmin)

	rec := env.do(t, http.MethodPost, "/api/admin/automation/start", token, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.automation.Status().Enabled)

	rec = env.do(t, http.MethodPost, "/api/admin/automation/stop", token, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, env.automation.Status().Enabled)

	rec = env.do(t, http.MethodPost, "/api/admin/trigger-automation", token, nil, "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	env.automation.Wait()

	rec = env.do(t, http.MethodGet, "/api/admin/automation/status", token, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[domain.RunStats](t, rec)
	assert.Equal(t, int64(1), status.TotalRuns)
	require.NotNil(t, status.LastResult)
	assert.Equal(t, usecase.TriggerManual, status.LastResult.Trigger)

	env.publish(t, "Tracked one", true)
	require.NoError(t, env.store.TrackSource(context.Background(), domain.NewsSourceRecord{SourceURL: "https://x.test/1", Title: "Tracked one", ArticleID: 1}))
	rec = env.do(t, http.MethodPost, "/api/admin/clear-sources", token, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"message":"Cleared 1 tracked sources","cleared":1}`, rec.Body.String())
}

func TestFallbackRoutes(t *testing.T) {
	t.Parallel()
	env := newEnv(t)

	rec := env.do(t, http.MethodGet, "/api/nope", "", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"API endpoint not found"}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/app.js", "", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "console.log(1)", rec.Body.String())

	rec = env.do(t, http.MethodGet, "/article/some-slug", "", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "spa")
}

func TestHealthAndPing(t *testing.T) {
	t.Parallel()
	env := newEnv(t)

	rec := env.do(t, http.MethodGet, "/health", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"database":"up"`)

	rec = env.do(t, http.MethodGet, "/ping", "", nil, "")
	assert.Equal(t, "pong", rec.Body.String())

	rec = env.do(t, http.MethodGet, "/metrics", "", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, http.StatusBadRequest, statusFor(domain.ErrValidation))
	assert.Equal(t, http.StatusConflict, statusFor(domain.ErrAlreadyRunning))
	assert.Equal(t, http.StatusUnauthorized, statusFor(domain.ErrAccountSuspended))
	assert.Equal(t, http.StatusForbidden, statusFor(domain.ErrForbidden))
	assert.Equal(t, http.StatusNotFound, statusFor(domain.ErrNotFound))
	assert.Equal(t, http.StatusInternalServerError, statusFor(io.ErrUnexpectedEOF))
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
