package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/patrimonio/patrimonio-webapi/internal/config"
	"github.com/patrimonio/patrimonio-webapi/internal/handler"
	"github.com/patrimonio/patrimonio-webapi/internal/infrastructure/auth"
	"github.com/patrimonio/patrimonio-webapi/internal/models"
	"github.com/patrimonio/patrimonio-webapi/internal/pipeline"
	repositorymocks "github.com/patrimonio/patrimonio-webapi/internal/repository/mocks"
	service "github.com/patrimonio/patrimonio-webapi/internal/services"
	"github.com/patrimonio/patrimonio-webapi/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type app struct {
	pipeline      *pipeline.Pipeline
	userRepo      *repositorymocks.MockUserRepository
	equipmentRepo *repositorymocks.MockEquipmentRepository
	tokens        *auth.TokenService
	imagesDir     string
	staticRoot    string
}

func newApp(t *testing.T, env string) *app {
	t.Helper()
	root := t.TempDir()
	cfg := &config.Config{
		AppEnv:       env,
		StaticRoot:   filepath.Join(root, "wwwroot"),
		ImagesDir:    filepath.Join(root, "Images"),
		MaxImageSize: 1 << 20,
	}
	require.NoError(t, os.MkdirAll(cfg.StaticRoot, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.StaticRoot, "site.css"), []byte("body{}"), 0o644))

	images, err := storage.NewImages(cfg.ImagesDir, cfg.MaxImageSize)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.ImagesDir, "chair.png"), []byte("\x89PNG"), 0o644))

	a := &app{
		userRepo:      &repositorymocks.MockUserRepository{},
		equipmentRepo: &repositorymocks.MockEquipmentRepository{},
		tokens:        auth.NewTokenService(auth.DefaultOptions(), 30*time.Minute),
		imagesDir:     cfg.ImagesDir,
		staticRoot:    cfg.StaticRoot,
	}
	users := service.NewUserService(a.userRepo, auth.NewBcryptHasher(bcrypt.MinCost), a.tokens)
	equipment := service.NewEquipmentService(a.equipmentRepo, images)
	h := handler.NewHandler(users, equipment, cfg.MaxImageSize)

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	a.pipeline = SetupPipeline(cfg, logger, h, a.tokens)
	return a
}

func (a *app) token(t *testing.T, id int32, role string) string {
	t.Helper()
	token, err := a.tokens.Issue(&models.User{ID: id, Email: "someone@example.com", Role: role})
	require.NoError(t, err)
	return token
}

func (a *app) do(method, path, token, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	a.pipeline.ServeHTTP(rec, req)
	return rec
}

func TestSetupPipeline_StageOrder(t *testing.T) {
	prod := newApp(t, "production")
	assert.Equal(t, []string{
		"request-id", "request-logger", "exception-handler",
		"swagger", "routing", "cors", "static-files", "static-images",
		"authentication", "authorization",
	}, prod.pipeline.Names())

	dev := newApp(t, config.EnvDevelopment)
	assert.Equal(t, "developer-exception-page", dev.pipeline.Names()[2])
}

func TestProtectedEndpointWithoutToken(t *testing.T) {
	a := newApp(t, "production")

	rec := a.do(http.MethodPost, "/api/equipment", "", `{"name":"Chair","asset_code":"PAT-9"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
	a.equipmentRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestExpiredToken(t *testing.T) {
	a := newApp(t, "production")
	issuedAt := time.Now().Add(-2 * time.Hour)
	old := auth.NewTokenService(auth.DefaultOptions(), 30*time.Minute, auth.WithTimeFunc(func() time.Time { return issuedAt }))
	token, err := old.Issue(&models.User{ID: 2, Role: models.RoleUser})
	require.NoError(t, err)

	rec := a.do(http.MethodGet, "/api/equipment", token, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, `Bearer error="invalid_token"`, rec.Header().Get("WWW-Authenticate"))
}

func TestLoginThenUseToken(t *testing.T) {
	a := newApp(t, "production")
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	a.userRepo.On("GetByEmail", mock.Anything, "ana@example.com").
		Return(&models.User{ID: 4, Email: "ana@example.com", PasswordHash: string(hash), Role: models.RoleUser}, nil)
	a.equipmentRepo.On("List", mock.Anything).Return([]models.Equipment{{ID: 1, Name: "Chair", AssetCode: "PAT-1", Active: true}}, nil)

	rec := a.do(http.MethodPost, "/api/login", "", `{"email":"ana@example.com","password":"s3cret"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp handler.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	rec = a.do(http.MethodGet, "/api/equipment", resp.Token, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"asset_code":"PAT-1"`)
	assert.NotContains(t, rec.Body.String(), "null")
}

func TestRoleRequirements(t *testing.T) {
	a := newApp(t, "production")
	a.userRepo.On("List", mock.Anything).Return([]models.User{{ID: 1, Role: models.RoleAdmin}}, nil)

	rec := a.do(http.MethodGet, "/api/users", a.token(t, 2, models.RoleUser), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(http.MethodGet, "/api/users", a.token(t, 1, models.RoleAdmin), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	a.userRepo.AssertNumberOfCalls(t, "List", 1)
}

func TestDocs(t *testing.T) {
	a := newApp(t, "production")

	rec := a.do(http.MethodGet, "/swagger/v1/swagger.json", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var doc struct {
		Info struct {
			Title   string `json:"title"`
			Version string `json:"version"`
		} `json:"info"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "Patrimonio.webAPI", doc.Info.Title)
	assert.Equal(t, "v1", doc.Info.Version)

	rec = a.do(http.MethodGet, "/", "", "")
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "/index.html", rec.Header().Get("Location"))
}

func TestCORSPreflightNeedsNoCredentials(t *testing.T) {
	a := newApp(t, "production")

	rec := a.do(http.MethodOptions, "/api/equipment", "", "",
		"Origin", "https://frontend.example",
		"Access-Control-Request-Method", http.MethodPost,
		"Access-Control-Request-Headers", "authorization,content-type",
	)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("WWW-Authenticate"))

	rec = a.do(http.MethodGet, "/api/equipment", "", "", "Origin", "https://frontend.example")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStaticFiles(t *testing.T) {
	a := newApp(t, "production")

	rec := a.do(http.MethodGet, "/site.css", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "body{}", rec.Body.String())

	rec = a.do(http.MethodGet, "/img/chair.png", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	rec = a.do(http.MethodGet, "/img/missing.png", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(http.MethodGet, "/img/../site.css", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodGet, "/no/such/page", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStaticFiles_DefaultRootRunsFirst(t *testing.T) {
	a := newApp(t, "production")
	require.NoError(t, os.MkdirAll(filepath.Join(a.staticRoot, "img"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(a.staticRoot, "img", "chair.png"), []byte("from wwwroot"), 0o644))

	rec := a.do(http.MethodGet, "/img/chair.png", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "from wwwroot", rec.Body.String())

	require.NoError(t, os.Remove(filepath.Join(a.staticRoot, "img", "chair.png")))
	rec = a.do(http.MethodGet, "/img/chair.png", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "\x89PNG", rec.Body.String())
}

func TestUploadedImageIsServed(t *testing.T) {
	a := newApp(t, "production")
	a.equipmentRepo.On("GetByID", mock.Anything, int32(3)).Return(&models.Equipment{ID: 3, Name: "Chair", AssetCode: "PAT-3"}, nil)
	a.equipmentRepo.On("Update", mock.Anything, mock.Anything).Return(nil)

	var body bytes.Buffer
	body.WriteString("--b\r\nContent-Disposition: form-data; name=\"image\"; filename=\"chair.gif\"\r\nContent-Type: image/gif\r\n\r\n")
	body.WriteString("GIF89a-pixels")
	body.WriteString("\r\n--b--\r\n")
	req := httptest.NewRequest(http.MethodPost, "/api/equipment/3/image", &body)
	req.Header.Set("Content-Type", "multipart/form-data; boundary=b")
	req.Header.Set("Authorization", "Bearer "+a.token(t, 2, models.RoleUser))
	rec := httptest.NewRecorder()
	a.pipeline.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var e models.Equipment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	require.NotNil(t, e.Image)

	rec = a.do(http.MethodGet, "/img/"+*e.Image, "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "GIF89a-pixels", rec.Body.String())
}

func TestUnhandledFailure(t *testing.T) {
	explode := func(mock.Arguments) { panic("database exploded") }

	t.Run("production hides details", func(t *testing.T) {
		a := newApp(t, "production")
		a.equipmentRepo.On("List", mock.Anything).Run(explode).Return(nil, nil)

		rec := a.do(http.MethodGet, "/api/equipment", a.token(t, 2, models.RoleUser), "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "database exploded")
	})

	t.Run("development shows details", func(t *testing.T) {
		a := newApp(t, config.EnvDevelopment)
		a.equipmentRepo.On("List", mock.Anything).Run(explode).Return(nil, nil)

		rec := a.do(http.MethodGet, "/api/equipment", a.token(t, 2, models.RoleUser), "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "database exploded")
	})
}

func TestMethodNotAllowed(t *testing.T) {
	a := newApp(t, "production")

	rec := a.do(http.MethodPatch, "/api/equipment", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	a := newApp(t, "production")
	a.do(http.MethodGet, "/no/such/page", "", "")

	rec := a.do(http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}
