package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ajali-app/backend/internal/handlers"
	authmw "github.com/ajali-app/backend/internal/middleware/auth"
	"github.com/ajali-app/backend/internal/models"
	"github.com/ajali-app/backend/internal/service"
	httpserver "github.com/ajali-app/backend/internal/transport/http"
	"github.com/ajali-app/backend/internal/upload"
)

type serverEnv struct {
	T  *testing.T
	E  *echo.Echo
	DB *gorm.DB
}

func newServerEnv(t *testing.T) *serverEnv {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.APIToken{}, &models.Incident{}))

	uploads, err := upload.NewStore(t.TempDir())
	require.NoError(t, err)

	tokens := &service.TokenService{DB: db, Secret: []byte("test_secret")}
	incidents := &service.IncidentService{DB: db}

	e := echo.New()
	httpserver.Register(e, &httpserver.Deps{
		DB:              db,
		AuthHandler:     &handlers.AuthHandler{DB: db, Tokens: tokens},
		IncidentHandler: &handlers.IncidentHandler{Incidents: incidents, Uploads: uploads},
		Auth:            &authmw.Middleware{Tokens: tokens},
		UploadDir:       uploads.Dir,
	})

	return &serverEnv{T: t, E: e, DB: db}
}

func (env *serverEnv) do(req *http.Request) (*httptest.ResponseRecorder, map[string]interface{}) {
	rec := httptest.NewRecorder()
	env.E.ServeHTTP(rec, req)

	var body map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func (env *serverEnv) doJSON(method, path string, payload, token string) (*httptest.ResponseRecorder, map[string]interface{}) {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	return env.do(req)
}

func (env *serverEnv) doForm(method, path string, fields map[string]string, imageName string, token string) (*httptest.ResponseRecorder, map[string]interface{}) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(env.T, w.WriteField(k, v))
	}
	if imageName != "" {
		fw, err := w.CreateFormFile("image", imageName)
		require.NoError(env.T, err)
		_, err = io.WriteString(fw, "image-bytes")
		require.NoError(env.T, err)
	}
	require.NoError(env.T, w.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	return env.do(req)
}

// signup registers and logs in a user, returning its id and a live token.
func (env *serverEnv) signup(username string) (string, string) {
	payload := fmt.Sprintf(`{"username":%q,"password":"pw1"}`, username)

	rec, body := env.doJSON(http.MethodPost, "/register", payload, "")
	require.Equal(env.T, http.StatusCreated, rec.Code)
	userID := body["user_id"].(string)

	rec, body = env.doJSON(http.MethodPost, "/login", payload, "")
	require.Equal(env.T, http.StatusOK, rec.Code)
	return userID, body["token"].(string)
}

var incidentFields = map[string]string{
	"title":       "Accident on Thika Road",
	"description": "Two vehicles involved",
	"lat":         "-1.2195",
	"long":        "36.8889",
}

func TestCreateIncidentRequiresAuth(t *testing.T) {
	env := newServerEnv(t)

	rec, body := env.doForm(http.MethodPost, "/incidents", incidentFields, "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Token is missing!", body["message"])

	rec, _ = env.doForm(http.MethodPost, "/incidents", incidentFields, "", "bogus")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateIncidentValidation(t *testing.T) {
	env := newServerEnv(t)
	_, token := env.signup("alice")

	for _, missing := range []string{"title", "description", "lat", "long"} {
		fields := map[string]string{}
		for k, v := range incidentFields {
			if k != missing {
				fields[k] = v
			}
		}
		rec, _ := env.doForm(http.MethodPost, "/incidents", fields, "", token)
		require.Equal(t, http.StatusBadRequest, rec.Code, "missing %s", missing)
	}

	var count int64
	require.NoError(t, env.DB.Model(&models.Incident{}).Count(&count).Error)
	require.EqualValues(t, 0, count)
}

func TestCreateIncidentWithImage(t *testing.T) {
	env := newServerEnv(t)
	userID, token := env.signup("alice")

	rec, body := env.doForm(http.MethodPost, "/incidents", incidentFields, "scene.jpg", token)
	require.Equal(t, http.StatusCreated, rec.Code)

	incident := body["incident"].(map[string]interface{})
	require.Equal(t, userID, incident["user_id"])
	require.Contains(t, incident["image_url"], "/uploads/")
	require.Contains(t, incident["image_url"], "_scene.jpg")

	// The stored image is served back over the static route.
	req := httptest.NewRequest(http.MethodGet, incident["image_url"].(string), nil)
	recFile, _ := env.do(req)
	require.Equal(t, http.StatusOK, recFile.Code)
	require.Equal(t, "image-bytes", recFile.Body.String())
}

func TestCreateIncidentRejectsBadFileType(t *testing.T) {
	env := newServerEnv(t)
	_, token := env.signup("alice")

	rec, body := env.doForm(http.MethodPost, "/incidents", incidentFields, "payload.exe", token)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Invalid file type.", body["message"])

	var count int64
	require.NoError(t, env.DB.Model(&models.Incident{}).Count(&count).Error)
	require.EqualValues(t, 0, count, "no partial record on rejected upload")
}

func TestUpdateIncidentOwnerOnly(t *testing.T) {
	env := newServerEnv(t)
	_, aliceToken := env.signup("alice")
	_, bobToken := env.signup("bob")

	rec, body := env.doForm(http.MethodPost, "/incidents", incidentFields, "", aliceToken)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := body["incident"].(map[string]interface{})["id"].(string)

	rec, body = env.doForm(http.MethodPut, "/incidents/"+id,
		map[string]string{"title": "hijacked"}, "", bobToken)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec, body = env.doForm(http.MethodPut, "/incidents/"+id,
		map[string]string{"title": "Cleared"}, "", aliceToken)
	require.Equal(t, http.StatusOK, rec.Code)
	incident := body["incident"].(map[string]interface{})
	require.Equal(t, "Cleared", incident["title"])
	require.Equal(t, incidentFields["description"], incident["description"])
}

func TestEndToEndFlow(t *testing.T) {
	env := newServerEnv(t)
	aliceID, aliceToken := env.signup("alice")
	_, bobToken := env.signup("bob")

	// Alice reports an incident.
	rec, body := env.doForm(http.MethodPost, "/incidents", incidentFields, "", aliceToken)
	require.Equal(t, http.StatusCreated, rec.Code)
	incident := body["incident"].(map[string]interface{})
	require.Equal(t, aliceID, incident["user_id"])
	id := incident["id"].(string)

	// Every authenticated user sees every incident.
	req := httptest.NewRequest(http.MethodGet, "/incidents", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+bobToken)
	recList := httptest.NewRecorder()
	env.E.ServeHTTP(recList, req)
	require.Equal(t, http.StatusOK, recList.Code)
	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal(recList.Body.Bytes(), &list))
	require.Len(t, list, 1)
	require.Equal(t, id, list[0]["id"])

	// Bob is not the owner, yet delete succeeds.
	rec, _ = env.doJSON(http.MethodDelete, "/incidents/"+id, "", bobToken)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = env.doJSON(http.MethodGet, "/incidents/"+id, "", bobToken)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLogoutKillsToken(t *testing.T) {
	env := newServerEnv(t)
	_, token := env.signup("alice")

	rec, _ := env.doJSON(http.MethodPost, "/logout", "", token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = env.doJSON(http.MethodGet, "/incidents", "", token)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
