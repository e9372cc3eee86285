package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vidtube/backend/internal/config"
	"github.com/vidtube/backend/internal/model"
	"github.com/vidtube/backend/internal/service"
	"golang.org/x/crypto/bcrypt"
)

type fakeStore struct {
	users map[string]*model.User
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: map[string]*model.User{}}
}

func (f *fakeStore) CreateUser(_ context.Context, u *model.User) (*model.User, error) {
	cp := *u
	f.users[u.ID] = &cp
	return &cp, nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := f.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeStore) GetUserByUsernameOrEmail(_ context.Context, username, email string) (*model.User, error) {
	for _, u := range f.users {
		if (username != "" && u.Username == username) || (email != "" && u.Email == email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeStore) SetRefreshToken(_ context.Context, userID string, token *string) error {
	u, ok := f.users[userID]
	if !ok {
		return pgx.ErrNoRows
	}
	u.RefreshToken = token
	return nil
}

func (f *fakeStore) SetPasswordHash(_ context.Context, userID, passwordHash string) error {
	u, ok := f.users[userID]
	if !ok {
		return pgx.ErrNoRows
	}
	u.PasswordHash = passwordHash
	return nil
}

func (f *fakeStore) UpdateProfile(_ context.Context, userID, fullName, email string) (*model.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	u.FullName = fullName
	u.Email = email
	cp := *u
	return &cp, nil
}

func (f *fakeStore) SetAvatar(_ context.Context, userID, url string) (*model.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	u.AvatarURL = url
	cp := *u
	return &cp, nil
}

func (f *fakeStore) SetCoverImage(_ context.Context, userID, url string) (*model.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	u.CoverImageURL = url
	cp := *u
	return &cp, nil
}

type fakeMedia struct {
	url string
}

func (f *fakeMedia) Upload(_ context.Context, localPath string) (string, error) {
	if localPath == "" {
		return "", nil
	}
	return f.url, nil
}

func testConfig() config.Config {
	return config.Config{
		Auth: config.AuthConfig{
			AccessTokenSecret:  "test-access-secret",
			RefreshTokenSecret: "test-refresh-secret",
			AccessTokenTTL:     "1h",
			RefreshTokenTTL:    "240h",
			CookieSecure:       "false",
		},
	}
}

func newTestEnv(t *testing.T) (*gin.Engine, *fakeStore, *service.TokenService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := newFakeStore()
	cfg := testConfig()

	tokens, err := service.NewTokenService(store, cfg.Auth)
	require.NoError(t, err)

	users := service.NewUserService(store, tokens, &fakeMedia{url: "https://cdn.example.com/img.png"})

	h, err := NewUserHandler(users, tokens, cfg)
	require.NoError(t, err)

	r := gin.New()
	authRequired := AuthMiddleware(tokens, store)
	api := r.Group("/api/v1/users")
	api.POST("/register", h.Register)
	api.POST("/login", h.Login)
	api.POST("/refresh-token", h.Refresh)
	api.POST("/logout", authRequired, h.Logout)
	api.POST("/change-password", authRequired, h.ChangePassword)
	api.GET("/me", authRequired, h.Me)
	api.PATCH("/me", authRequired, h.UpdateProfile)
	api.PATCH("/avatar", authRequired, h.UpdateAvatar)
	api.PATCH("/cover-image", authRequired, h.UpdateCoverImage)

	return r, store, tokens
}

func seedUser(t *testing.T, store *fakeStore, password string) *model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	require.NoError(t, err)
	user := &model.User{
		ID:           "user-1",
		Username:     "alice",
		Email:        "alice@x.com",
		FullName:     "Alice A",
		PasswordHash: string(hash),
	}
	store.users[user.ID] = user
	return user
}

func postJSON(r *gin.Engine, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func multipartRequest(t *testing.T, method, path string, fields map[string]string, files map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, value := range fields {
		require.NoError(t, mw.WriteField(name, value))
	}
	for field, filename := range files {
		fw, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte("fake image bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func registerFields() map[string]string {
	return map[string]string{
		"username": "alice",
		"email":    "alice@x.com",
		"fullName": "Alice A",
		"password": "p@ss1234",
	}
}

func TestRegisterCreatesUser(t *testing.T) {
	r, store, _ := newTestEnv(t)

	req := multipartRequest(t, http.MethodPost, "/api/v1/users/register",
		registerFields(), map[string]string{"avatar": "avatar.png"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Username string `json:"username"`
			Avatar   string `json:"avatar"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "alice", resp.Data.Username)
	assert.Equal(t, "https://cdn.example.com/img.png", resp.Data.Avatar)

	assert.NotContains(t, w.Body.String(), "passwordHash")
	assert.NotContains(t, w.Body.String(), "refreshToken")
	assert.Len(t, store.users, 1)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	r, _, _ := newTestEnv(t)

	req := multipartRequest(t, http.MethodPost, "/api/v1/users/register",
		registerFields(), map[string]string{"avatar": "avatar.png"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	fields := registerFields()
	fields["username"] = "alice2"
	req = multipartRequest(t, http.MethodPost, "/api/v1/users/register",
		fields, map[string]string{"avatar": "avatar.png"})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRegisterValidation(t *testing.T) {
	r, store, _ := newTestEnv(t)

	t.Run("blank field", func(t *testing.T) {
		fields := registerFields()
		fields["password"] = "   "
		req := multipartRequest(t, http.MethodPost, "/api/v1/users/register",
			fields, map[string]string{"avatar": "avatar.png"})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing avatar", func(t *testing.T) {
		req := multipartRequest(t, http.MethodPost, "/api/v1/users/register",
			registerFields(), nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	assert.Empty(t, store.users)
}

func TestLoginSetsCookies(t *testing.T) {
	r, store, _ := newTestEnv(t)
	seedUser(t, store, "p@ss1234")

	w := postJSON(r, "/api/v1/users/login", model.LoginRequest{Username: "alice", Password: "p@ss1234"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 2)
	names := map[string]bool{}
	for _, cookie := range cookies {
		names[cookie.Name] = true
		assert.True(t, cookie.HttpOnly, "%s must be HTTP-only", cookie.Name)
		assert.NotEmpty(t, cookie.Value)
	}
	assert.True(t, names["accessToken"])
	assert.True(t, names["refreshToken"])

	assert.NotContains(t, w.Body.String(), "passwordHash")
}

func TestLoginFailures(t *testing.T) {
	r, store, _ := newTestEnv(t)
	seedUser(t, store, "p@ss1234")

	t.Run("wrong password", func(t *testing.T) {
		w := postJSON(r, "/api/v1/users/login", model.LoginRequest{Username: "alice", Password: "nope"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Empty(t, w.Result().Cookies(), "failed login must not set cookies")
	})

	t.Run("unknown user", func(t *testing.T) {
		w := postJSON(r, "/api/v1/users/login", model.LoginRequest{Username: "bob", Password: "p@ss1234"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("missing identifier", func(t *testing.T) {
		w := postJSON(r, "/api/v1/users/login", model.LoginRequest{Password: "p@ss1234"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestRefreshToken(t *testing.T) {
	r, store, tokens := newTestEnv(t)
	user := seedUser(t, store, "p@ss1234")

	pair, err := tokens.IssueAndPersistPair(context.Background(), user)
	require.NoError(t, err)

	t.Run("missing token", func(t *testing.T) {
		w := postJSON(r, "/api/v1/users/refresh-token", gin.H{})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("rotates via cookie", func(t *testing.T) {
		w := postJSON(r, "/api/v1/users/refresh-token", nil,
			&http.Cookie{Name: "refreshToken", Value: pair.RefreshToken})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp struct {
			Data model.TokenPair `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.NotEqual(t, pair.RefreshToken, resp.Data.RefreshToken)
	})

	t.Run("replay of superseded token", func(t *testing.T) {
		w := postJSON(r, "/api/v1/users/refresh-token", model.RefreshRequest{RefreshToken: pair.RefreshToken})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestLogoutEndsRefreshLineage(t *testing.T) {
	r, store, tokens := newTestEnv(t)
	user := seedUser(t, store, "p@ss1234")

	pair, err := tokens.IssueAndPersistPair(context.Background(), user)
	require.NoError(t, err)

	w := postJSON(r, "/api/v1/users/logout", nil,
		&http.Cookie{Name: "accessToken", Value: pair.AccessToken})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Nil(t, store.users[user.ID].RefreshToken)

	// Cleared cookies come back with MaxAge < 0.
	for _, cookie := range w.Result().Cookies() {
		assert.Less(t, cookie.MaxAge, 0)
	}

	w = postJSON(r, "/api/v1/users/refresh-token", model.RefreshRequest{RefreshToken: pair.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestChangePasswordEndpoint(t *testing.T) {
	r, store, tokens := newTestEnv(t)
	user := seedUser(t, store, "old-pass")

	access, err := tokens.IssueAccessToken(user)
	require.NoError(t, err)
	cookie := &http.Cookie{Name: "accessToken", Value: access}

	w := postJSON(r, "/api/v1/users/change-password",
		model.ChangePasswordRequest{OldPassword: "wrong", NewPassword: "new-pass"}, cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(r, "/api/v1/users/change-password",
		model.ChangePasswordRequest{OldPassword: "old-pass", NewPassword: "new-pass"}, cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(store.users[user.ID].PasswordHash), []byte("new-pass")))
}

func TestMeAndProfileUpdate(t *testing.T) {
	r, store, tokens := newTestEnv(t)
	user := seedUser(t, store, "p@ss1234")

	access, err := tokens.IssueAccessToken(user)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.AddCookie(&http.Cookie{Name: "accessToken", Value: access})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"alice"`)
	assert.NotContains(t, w.Body.String(), "passwordHash")
	assert.NotContains(t, w.Body.String(), "refreshToken")

	payload, _ := json.Marshal(model.UpdateProfileRequest{FullName: "Alice B"})
	req = httptest.NewRequest(http.MethodPatch, "/api/v1/users/me", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: "accessToken", Value: access})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Alice B", store.users[user.ID].FullName)
	assert.Equal(t, "alice@x.com", store.users[user.ID].Email)
}

func TestUpdateAvatarEndpoint(t *testing.T) {
	r, store, tokens := newTestEnv(t)
	user := seedUser(t, store, "p@ss1234")

	access, err := tokens.IssueAccessToken(user)
	require.NoError(t, err)

	t.Run("missing file", func(t *testing.T) {
		req := multipartRequest(t, http.MethodPatch, "/api/v1/users/avatar", nil, nil)
		req.AddCookie(&http.Cookie{Name: "accessToken", Value: access})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("replaces avatar", func(t *testing.T) {
		req := multipartRequest(t, http.MethodPatch, "/api/v1/users/avatar",
			nil, map[string]string{"avatar": "new.png"})
		req.AddCookie(&http.Cookie{Name: "accessToken", Value: access})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "https://cdn.example.com/img.png", store.users[user.ID].AvatarURL)
	})
}
