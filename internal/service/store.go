package service

import (
	"context"

	"github.com/vidtube/backend/internal/model"
)

// UserStore is the credential-store surface the services depend on.
// *db.Postgres implements it; tests substitute fakes. Update methods are
// column-scoped so a token or password write can never touch other fields.
type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByUsernameOrEmail(ctx context.Context, username, email string) (*model.User, error)
	SetRefreshToken(ctx context.Context, userID string, token *string) error
	SetPasswordHash(ctx context.Context, userID, passwordHash string) error
	UpdateProfile(ctx context.Context, userID, fullName, email string) (*model.User, error)
	SetAvatar(ctx context.Context, userID, url string) (*model.User, error)
	SetCoverImage(ctx context.Context, userID, url string) (*model.User, error)
}

// MediaUploader pushes a locally staged file to the asset host and returns
// its public URL. An empty local path yields ("", nil).
type MediaUploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}
