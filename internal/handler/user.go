package handler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/vidtube/backend/internal/config"
	"github.com/vidtube/backend/internal/model"
	"github.com/vidtube/backend/internal/service"
)

type CookieConfig struct {
	Path     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

type UserHandler struct {
	users     *service.UserService
	tokens    *service.TokenService
	cookieCfg CookieConfig
	tmpDir    string
}

func NewUserHandler(users *service.UserService, tokens *service.TokenService, cfg config.Config) (*UserHandler, error) {
	cookieSecure, err := parseBool(cfg.Auth.CookieSecure, true)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid AUTH_COOKIE_SECURE", service.ErrMisconfigured)
	}

	cookieSameSite, err := parseSameSite(cfg.Auth.CookieSameSite)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid AUTH_COOKIE_SAMESITE", service.ErrMisconfigured)
	}

	cookiePath := strings.TrimSpace(cfg.Auth.CookiePath)
	if cookiePath == "" {
		cookiePath = "/"
	}

	tmpDir := cfg.Server.TempUploadDir
	if tmpDir == "" {
		tmpDir = os.TempDir()
	}

	return &UserHandler{
		users:  users,
		tokens: tokens,
		cookieCfg: CookieConfig{
			Path:     cookiePath,
			Domain:   cfg.Auth.CookieDomain,
			Secure:   cookieSecure,
			SameSite: cookieSameSite,
		},
		tmpDir: tmpDir,
	}, nil
}

// Register godoc
// @Summary Register a new user
// @Description Multipart registration with a required avatar and optional cover image.
// @Tags users
// @Accept mpfd
// @Produce json
// @Param username formData string true "Username"
// @Param email formData string true "Email"
// @Param fullName formData string true "Full name"
// @Param password formData string true "Password"
// @Param avatar formData file true "Avatar image"
// @Param coverImage formData file false "Cover image"
// @Success 201 {object} model.APIResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 409 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/v1/users/register [post]
func (h *UserHandler) Register(c *gin.Context) {
	in := service.RegisterInput{
		Username: c.PostForm("username"),
		Email:    c.PostForm("email"),
		FullName: c.PostForm("fullName"),
		Password: c.PostForm("password"),
	}

	if avatar, err := c.FormFile("avatar"); err == nil {
		path, err := h.saveTempFile(c, avatar)
		if err != nil {
			writeError(c, err)
			return
		}
		defer os.Remove(path)
		in.AvatarPath = path
	}

	if cover, err := c.FormFile("coverImage"); err == nil {
		path, err := h.saveTempFile(c, cover)
		if err != nil {
			writeError(c, err)
			return
		}
		defer os.Remove(path)
		in.CoverImagePath = path
	}

	user, err := h.users.Register(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, model.APIResponse{
		Success: true,
		Message: "user created successfully",
		Data:    model.NewUserResponse(user),
	})
}

// Login godoc
// @Summary Login with username or email
// @Description Returns the token pair in the body and as HTTP-only cookies.
// @Tags users
// @Accept json
// @Produce json
// @Param request body model.LoginRequest true "Credentials"
// @Success 200 {object} model.APIResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /api/v1/users/login [post]
func (h *UserHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Message: "invalid request body"})
		return
	}

	user, pair, err := h.users.Login(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}

	h.setAuthCookies(c, pair)
	c.JSON(http.StatusOK, model.APIResponse{
		Success: true,
		Message: "user logged in successfully",
		Data: model.LoginResponse{
			User:         model.NewUserResponse(user),
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
		},
	})
}

// Logout godoc
// @Summary Logout the current user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.APIResponse
// @Failure 401 {object} model.ErrorResponse
// @Router /api/v1/users/logout [post]
func (h *UserHandler) Logout(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		abortUnauthorized(c, "unauthorized request")
		return
	}

	if err := h.users.Logout(c.Request.Context(), user.ID); err != nil {
		writeError(c, err)
		return
	}

	h.clearAuthCookies(c)
	c.JSON(http.StatusOK, model.APIResponse{Success: true, Message: "user logged out"})
}

// Refresh godoc
// @Summary Rotate the refresh token
// @Description Reads the refresh token from the cookie or the body and returns a new pair.
// @Tags users
// @Accept json
// @Produce json
// @Param request body model.RefreshRequest false "Refresh token when not using cookies"
// @Success 200 {object} model.APIResponse
// @Failure 401 {object} model.ErrorResponse
// @Router /api/v1/users/refresh-token [post]
func (h *UserHandler) Refresh(c *gin.Context) {
	incoming, _ := c.Cookie(refreshCookieName)
	if incoming == "" {
		var req model.RefreshRequest
		if err := c.ShouldBindJSON(&req); err == nil {
			incoming = req.RefreshToken
		}
	}
	if incoming == "" {
		abortUnauthorized(c, "refresh token is required")
		return
	}

	pair, _, err := h.tokens.Rotate(c.Request.Context(), incoming)
	if err != nil {
		writeError(c, err)
		return
	}

	h.setAuthCookies(c, pair)
	c.JSON(http.StatusOK, model.APIResponse{
		Success: true,
		Message: "access token refreshed",
		Data:    pair,
	})
}

// ChangePassword godoc
// @Summary Change the current user's password
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.ChangePasswordRequest true "Old and new passwords"
// @Success 200 {object} model.APIResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Router /api/v1/users/change-password [post]
func (h *UserHandler) ChangePassword(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		abortUnauthorized(c, "unauthorized request")
		return
	}

	var req model.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Message: "invalid request body"})
		return
	}

	if err := h.users.ChangePassword(c.Request.Context(), user.ID, req.OldPassword, req.NewPassword); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.APIResponse{Success: true, Message: "password changed successfully"})
}

// Me godoc
// @Summary Get the current user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.APIResponse
// @Failure 401 {object} model.ErrorResponse
// @Router /api/v1/users/me [get]
func (h *UserHandler) Me(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		abortUnauthorized(c, "unauthorized request")
		return
	}

	c.JSON(http.StatusOK, model.APIResponse{
		Success: true,
		Message: "current user fetched successfully",
		Data:    user,
	})
}

// UpdateProfile godoc
// @Summary Update full name and/or email
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.UpdateProfileRequest true "Fields to update"
// @Success 200 {object} model.APIResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 409 {object} model.ErrorResponse
// @Router /api/v1/users/me [patch]
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		abortUnauthorized(c, "unauthorized request")
		return
	}

	var req model.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Message: "invalid request body"})
		return
	}

	updated, err := h.users.UpdateProfile(c.Request.Context(), user.ID, req.FullName, req.Email)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.APIResponse{
		Success: true,
		Message: "profile updated successfully",
		Data:    model.NewUserResponse(updated),
	})
}

// UpdateAvatar godoc
// @Summary Replace the current user's avatar
// @Tags users
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param avatar formData file true "Avatar image"
// @Success 200 {object} model.APIResponse
// @Failure 400 {object} model.ErrorResponse
// @Router /api/v1/users/avatar [patch]
func (h *UserHandler) UpdateAvatar(c *gin.Context) {
	h.updateImage(c, "avatar", h.users.UpdateAvatar)
}

// UpdateCoverImage godoc
// @Summary Replace the current user's cover image
// @Tags users
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param coverImage formData file true "Cover image"
// @Success 200 {object} model.APIResponse
// @Failure 400 {object} model.ErrorResponse
// @Router /api/v1/users/cover-image [patch]
func (h *UserHandler) UpdateCoverImage(c *gin.Context) {
	h.updateImage(c, "coverImage", h.users.UpdateCoverImage)
}

func (h *UserHandler) updateImage(c *gin.Context, field string, update func(ctx context.Context, userID, localPath string) (*model.User, error)) {
	user := GetAuthUser(c)
	if user == nil {
		abortUnauthorized(c, "unauthorized request")
		return
	}

	fh, err := c.FormFile(field)
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Message: field + " file is required"})
		return
	}

	path, err := h.saveTempFile(c, fh)
	if err != nil {
		writeError(c, err)
		return
	}
	defer os.Remove(path)

	updated, err := update(c.Request.Context(), user.ID, path)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.APIResponse{
		Success: true,
		Message: field + " updated successfully",
		Data:    model.NewUserResponse(updated),
	})
}

func (h *UserHandler) saveTempFile(c *gin.Context, fh *multipart.FileHeader) (string, error) {
	path := filepath.Join(h.tmpDir, uuid.NewString()+filepath.Ext(fh.Filename))
	if err := c.SaveUploadedFile(fh, path); err != nil {
		return "", fmt.Errorf("failed to stage upload: %w", err)
	}
	return path, nil
}

func (h *UserHandler) setAuthCookies(c *gin.Context, pair *model.TokenPair) {
	cfg := h.cookieCfg
	c.SetSameSite(cfg.SameSite)
	c.SetCookie(accessCookieName, pair.AccessToken, int(h.tokens.AccessTTL().Seconds()), cfg.Path, cfg.Domain, cfg.Secure, true)
	c.SetCookie(refreshCookieName, pair.RefreshToken, int(h.tokens.RefreshTTL().Seconds()), cfg.Path, cfg.Domain, cfg.Secure, true)
}

func (h *UserHandler) clearAuthCookies(c *gin.Context) {
	cfg := h.cookieCfg
	c.SetSameSite(cfg.SameSite)
	c.SetCookie(accessCookieName, "", -1, cfg.Path, cfg.Domain, cfg.Secure, true)
	c.SetCookie(refreshCookieName, "", -1, cfg.Path, cfg.Domain, cfg.Secure, true)
}

// writeError is the single boundary converting the service error taxonomy
// into HTTP responses. Unclassified errors become a generic 500; the
// underlying cause is logged, never sent to the client.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Message: err.Error()})
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, model.ErrorResponse{Message: err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, model.ErrorResponse{Message: err.Error()})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, model.ErrorResponse{Message: err.Error()})
	case errors.Is(err, service.ErrTokenIssuance):
		log.Printf("token issuance failed: %v", err)
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Message: "failed to issue tokens"})
	default:
		log.Printf("request failed: %v", err)
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Message: "something went wrong"})
	}
}

func parseBool(value string, fallback bool) (bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	return strconv.ParseBool(value)
}

func parseSameSite(value string) (http.SameSite, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, service.ErrInvalidInput
	}
}
