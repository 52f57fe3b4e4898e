package app_test

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/sharevault/pkg/app"
	"github.com/yeisme/sharevault/pkg/internal/handle"
	"github.com/yeisme/sharevault/pkg/internal/testkit"
	"github.com/yeisme/sharevault/pkg/internal/types"
)

type client struct {
	t      *testing.T
	engine *gin.Engine
}

func newClient(t *testing.T) (*client, *testkit.Env) {
	t.Helper()

	gin.SetMode(gin.TestMode)

	env := testkit.New(t)
	cfg := env.Deps.Config
	cfg.RateLimit.Enabled = false

	engine := app.NewEngine(&cfg, app.EngineDeps{Services: env.Services})

	return &client{t: t, engine: engine}, env
}

func (c *client) do(req *http.Request, headers ...string) *httptest.ResponseRecorder {
	c.t.Helper()

	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	c.engine.ServeHTTP(rec, req)

	return rec
}

func (c *client) json(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	c.t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(c.t, err)

		r = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, headers...)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())

	return out
}

func multipartBody(t *testing.T, files ...string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer

	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("note", "ignored"))

	for i := 0; i+1 < len(files); i += 2 {
		fw, err := w.CreateFormFile(handle.UploadField, files[i])
		require.NoError(t, err)

		_, err = io.WriteString(fw, files[i+1])
		require.NoError(t, err)
	}

	require.NoError(t, w.Close())

	return &buf, w.FormDataContentType()
}

func path(url string) string {
	return strings.TrimPrefix(url, "http://share.test")
}

func TestUploadAndDownloadOverHTTP(t *testing.T) {
	c, env := newClient(t)
	env.User(t, "alice")

	as := []string{"X-User-ID", "alice"}

	rec := c.json(http.MethodPost, "/api/v1/shares", types.CreateShareRequest{Title: "Trip"}, as...)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	share := decode[types.ShareInfo](t, rec)

	rec = c.json(http.MethodPost, "/api/v1/shares/"+share.ID+"/upload-intents",
		types.CreateUploadIntentRequest{ExpectedFileCount: 2, ExpectedFileSizeMB: 5}, as...)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	intent := decode[types.UploadIntentResponse](t, rec)
	assert.Equal(t, "/u/"+intent.Signature, path(intent.URL))

	body, contentType := multipartBody(t, "a.txt", "alpha", "b.txt", "bravo")
	req := httptest.NewRequest(http.MethodPost, path(intent.URL), body)
	req.Header.Set("Content-Type", contentType)

	rec = c.do(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	result := decode[types.UploadResult](t, rec)
	assert.Len(t, result.Files, 2)
	assert.Equal(t, int64(5), result.ChargedMB)

	t.Run("signature is single use", func(t *testing.T) {
		body, contentType := multipartBody(t, "c.txt", "charlie")
		req := httptest.NewRequest(http.MethodPost, path(intent.URL), body)
		req.Header.Set("Content-Type", contentType)

		rec := c.do(req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	rec = c.json(http.MethodGet, "/api/v1/upload-intents/"+intent.ID, nil, as...)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, types.UploadCommitted, decode[types.UploadIntentStatus](t, rec).State)

	rec = c.json(http.MethodGet, "/api/v1/quota", nil, as...)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(5), decode[types.QuotaUsage](t, rec).UsedMB)

	rec = c.json(http.MethodPost, "/api/v1/shares/"+share.ID+"/download-links", nil, as...)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	link := decode[types.DownloadLinkResponse](t, rec)

	rec = c.do(httptest.NewRequest(http.MethodGet, path(link.URL), nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename=Trip.zip`)
	assert.Empty(t, rec.Header().Get("Content-Encoding"))

	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	require.NoError(t, err)

	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}

	assert.ElementsMatch(t, []string{"a.txt", "b.txt"}, names)

	rec = c.do(httptest.NewRequest(http.MethodGet, path(link.URL), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "download signatures are single use too")
}

func TestIdentityAndRoles(t *testing.T) {
	c, env := newClient(t)
	env.User(t, "alice")

	rec := c.json(http.MethodGet, "/api/v1/shares", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = c.json(http.MethodGet, "/api/v1/plans", nil)
	require.Equal(t, http.StatusOK, rec.Code, "the catalog is public")
	assert.Contains(t, rec.Body.String(), `"quota_mb":100`)

	rec = c.json(http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	plan := types.UpsertPlanRequest{ID: 2, Name: "pro", QuotaMB: 10240}

	rec = c.json(http.MethodPost, "/api/v1/admin/plans", plan, "X-User-ID", "alice")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = c.json(http.MethodPost, "/api/v1/admin/plans", plan, "X-User-ID", "ops", "X-Role", "admin")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = c.json(http.MethodPut, "/api/v1/admin/users/alice/plan", types.SetPlanRequest{PlanID: 2},
		"X-User-ID", "ops", "X-Role", "admin")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = c.json(http.MethodGet, "/api/v1/quota", nil, "X-User-ID", "alice")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(10240), decode[types.QuotaUsage](t, rec).CeilingMB)

	rec = c.json(http.MethodGet, "/api/v1/quota", nil, "X-User-ID", "nobody")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPlanCatalogRevalidation(t *testing.T) {
	c, _ := newClient(t)

	rec := c.json(http.MethodGet, "/api/v1/plans", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)
	assert.Equal(t, "public, max-age=60", rec.Header().Get("Cache-Control"))

	rec = c.json(http.MethodGet, "/api/v1/plans", nil, "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, etag, rec.Header().Get("ETag"))

	plan := types.UpsertPlanRequest{ID: 3, Name: "studio", QuotaMB: 2048}
	rec = c.json(http.MethodPost, "/api/v1/admin/plans", plan, "X-User-ID", "ops", "X-Role", "admin")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = c.json(http.MethodGet, "/api/v1/plans", nil, "If-None-Match", etag)
	require.Equal(t, http.StatusOK, rec.Code, "a changed catalog is sent again")
	assert.Contains(t, rec.Body.String(), `"name":"studio"`)
	assert.NotEqual(t, etag, rec.Header().Get("ETag"))
}

func TestRequestErrorsOverHTTP(t *testing.T) {
	c, env := newClient(t)
	env.User(t, "alice")

	as := []string{"X-User-ID", "alice"}

	rec := c.json(http.MethodPost, "/api/v1/shares", map[string]any{"custom_slug": "Not A Slug!"}, as...)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	errResp := decode[handle.ErrorResponse](t, rec)
	assert.NotEmpty(t, errResp.Fields)

	share := env.Share(t, "alice", nil)

	rec = c.json(http.MethodPost, "/api/v1/shares/"+share.ID+"/upload-intents",
		types.CreateUploadIntentRequest{ExpectedFileCount: 1, ExpectedFileSizeMB: testkit.BaselineQuotaMB + 1}, as...)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "quota exceeded")

	rec = c.json(http.MethodGet, "/api/v1/shares/"+share.ID, nil, "X-User-ID", "mallory")
	assert.Contains(t, []int{http.StatusForbidden, http.StatusNotFound}, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/u/whatever", strings.NewReader("plain"))
	req.Header.Set("Content-Type", "text/plain")
	assert.Equal(t, http.StatusBadRequest, c.do(req).Code)
}

func TestVisitWithPassword(t *testing.T) {
	c, env := newClient(t)
	env.User(t, "alice")

	share := env.Share(t, "alice", &types.CreateShareRequest{Title: "secret", Password: "hunter2", CustomSlug: "secret-stuff"})

	rec := c.json(http.MethodGet, "/s/secret-stuff", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "password_required", decode[handle.ErrorResponse](t, rec).Reason)

	rec = c.json(http.MethodGet, "/s/secret-stuff", nil, handle.PasswordHeader, "wrong")
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "password_mismatch", decode[handle.ErrorResponse](t, rec).Reason)

	rec = c.json(http.MethodGet, "/s/secret-stuff?password=hunter2", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	visit := decode[types.VisitResponse](t, rec)
	assert.Equal(t, share.ID, visit.Share.ID)
	assert.NotEmpty(t, visit.Download.Signature)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}
