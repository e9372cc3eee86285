package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/model"
	"golang.org/x/crypto/bcrypt"
)

// UserService implements the account operations: registration, login,
// logout, password change and profile/media updates.
type UserService struct {
	store  UserStore
	tokens *TokenService
	media  MediaUploader
}

func NewUserService(store UserStore, tokens *TokenService, media MediaUploader) *UserService {
	return &UserService{store: store, tokens: tokens, media: media}
}

type RegisterInput struct {
	FullName       string
	Email          string
	Username       string
	Password       string
	AvatarPath     string
	CoverImagePath string
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	fullName := strings.TrimSpace(in.FullName)
	email := strings.TrimSpace(in.Email)
	username := strings.ToLower(strings.TrimSpace(in.Username))
	password := strings.TrimSpace(in.Password)

	if fullName == "" || email == "" || username == "" || password == "" {
		return nil, fmt.Errorf("%w: all fields are required", ErrInvalidInput)
	}

	if _, err := s.store.GetUserByUsernameOrEmail(ctx, username, email); err == nil {
		return nil, fmt.Errorf("%w: user already exists with this username or email", ErrConflict)
	} else if !db.IsNotFound(err) {
		return nil, err
	}

	if in.AvatarPath == "" {
		return nil, fmt.Errorf("%w: avatar is required", ErrInvalidInput)
	}

	avatarURL, err := s.media.Upload(ctx, in.AvatarPath)
	if err != nil || avatarURL == "" {
		return nil, fmt.Errorf("%w: avatar is required", ErrInvalidInput)
	}

	// Cover image is optional; a failed upload degrades to an empty URL.
	coverURL := ""
	if in.CoverImagePath != "" {
		coverURL, err = s.media.Upload(ctx, in.CoverImagePath)
		if err != nil {
			log.Printf("cover image upload failed: %v", err)
			coverURL = ""
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	created, err := s.store.CreateUser(ctx, &model.User{
		ID:            uuid.NewString(),
		Username:      username,
		Email:         email,
		FullName:      fullName,
		AvatarURL:     avatarURL,
		CoverImageURL: coverURL,
		PasswordHash:  string(hash),
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: user already exists with this username or email", ErrConflict)
		}
		return nil, err
	}

	user, err := s.store.GetUserByID(ctx, created.ID)
	if err != nil {
		return nil, fmt.Errorf("user was not created: %w", err)
	}
	return user, nil
}

func (s *UserService) Login(ctx context.Context, username, email, password string) (*model.User, *model.TokenPair, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	email = strings.TrimSpace(email)

	if username == "" && email == "" {
		return nil, nil, fmt.Errorf("%w: username or email is required", ErrInvalidInput)
	}

	user, err := s.store.GetUserByUsernameOrEmail(ctx, username, email)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil, fmt.Errorf("%w: user does not exist", ErrNotFound)
		}
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, fmt.Errorf("%w: invalid user credentials", ErrUnauthorized)
	}

	pair, err := s.tokens.IssueAndPersistPair(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Logout clears the stored refresh token, ending the refresh lineage.
func (s *UserService) Logout(ctx context.Context, userID string) error {
	return s.store.SetRefreshToken(ctx, userID, nil)
}

func (s *UserService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if strings.TrimSpace(oldPassword) == "" || strings.TrimSpace(newPassword) == "" {
		return fmt.Errorf("%w: old and new passwords are required", ErrInvalidInput)
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return fmt.Errorf("%w: user does not exist", ErrNotFound)
		}
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return fmt.Errorf("%w: old password is incorrect", ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	return s.store.SetPasswordHash(ctx, userID, string(hash))
}

func (s *UserService) UpdateProfile(ctx context.Context, userID, fullName, email string) (*model.User, error) {
	fullName = strings.TrimSpace(fullName)
	email = strings.TrimSpace(email)

	if fullName == "" && email == "" {
		return nil, fmt.Errorf("%w: fullName or email is required", ErrInvalidInput)
	}

	current, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, fmt.Errorf("%w: user does not exist", ErrNotFound)
		}
		return nil, err
	}

	if fullName == "" {
		fullName = current.FullName
	}
	if email == "" {
		email = current.Email
	}

	user, err := s.store.UpdateProfile(ctx, userID, fullName, email)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: email is already in use", ErrConflict)
		}
		return nil, err
	}
	return user, nil
}

func (s *UserService) UpdateAvatar(ctx context.Context, userID, localPath string) (*model.User, error) {
	url, err := s.uploadImage(ctx, localPath, "avatar")
	if err != nil {
		return nil, err
	}
	return s.store.SetAvatar(ctx, userID, url)
}

func (s *UserService) UpdateCoverImage(ctx context.Context, userID, localPath string) (*model.User, error) {
	url, err := s.uploadImage(ctx, localPath, "cover image")
	if err != nil {
		return nil, err
	}
	return s.store.SetCoverImage(ctx, userID, url)
}

func (s *UserService) uploadImage(ctx context.Context, localPath, kind string) (string, error) {
	if localPath == "" {
		return "", fmt.Errorf("%w: %s file is required", ErrInvalidInput, kind)
	}
	url, err := s.media.Upload(ctx, localPath)
	if err != nil || url == "" {
		return "", fmt.Errorf("%w: %s upload failed", ErrInvalidInput, kind)
	}
	return url, nil
}
