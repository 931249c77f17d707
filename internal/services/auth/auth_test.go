package auth_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/uxerra/studio-api/internal/lib/apperr"
	customjwt "github.com/uxerra/studio-api/internal/lib/jwt"
	"github.com/uxerra/studio-api/internal/lib/password"
	"github.com/uxerra/studio-api/internal/models"
	"github.com/uxerra/studio-api/internal/services/auth"
	"github.com/uxerra/studio-api/internal/storage/repository"
)

// Мок для UserRepository
type UserRepoMock struct {
	mock.Mock
}

func (m *UserRepoMock) CreateUser(ctx context.Context, user models.User) (*models.User, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *UserRepoMock) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *UserRepoMock) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type JwtMakerMock struct {
	mock.Mock
}

func (m *JwtMakerMock) GenerateToken(userID, email, role string) (string, error) {
	args := m.Called(userID, email, role)
	return args.String(0), args.Error(1)
}

func (m *JwtMakerMock) ParseToken(token string) (*customjwt.CustomClaims, error) {
	args := m.Called(token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*customjwt.CustomClaims), args.Error(1)
}

type AuditorMock struct {
	mock.Mock
}

func (m *AuditorMock) Record(ctx context.Context, userID, action, resource, resourceID string, details map[string]any) {
	m.Called(ctx, userID, action, resource, resourceID, details)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestService_Register(t *testing.T) {
	req := models.RegisterRequest{Email: " Ann@UXerra.pro ", Password: "password123", Name: "Ann"}

	tests := []struct {
		name       string
		setupMocks func(r *UserRepoMock, j *JwtMakerMock, a *AuditorMock)
		wantStatus int
	}{
		{
			name: "successful registration",
			setupMocks: func(r *UserRepoMock, j *JwtMakerMock, a *AuditorMock) {
				r.On("CreateUser", mock.Anything, mock.MatchedBy(func(u models.User) bool {
					return u.Email == "ann@uxerra.pro" && u.Role == models.RoleUser &&
						u.PasswordHash != "" && u.PasswordHash != "password123"
				})).Return(&models.User{ID: "u1", Email: "ann@uxerra.pro", Role: models.RoleUser}, nil).Once()
				j.On("GenerateToken", "u1", "ann@uxerra.pro", models.RoleUser).Return("token", nil).Once()
				a.On("Record", mock.Anything, "u1", "user.register", "user", "u1", mock.Anything).Once()
			},
		},
		{
			name: "duplicate email",
			setupMocks: func(r *UserRepoMock, _ *JwtMakerMock, _ *AuditorMock) {
				r.On("CreateUser", mock.Anything, mock.Anything).Return(nil, repository.ErrAlreadyExists).Once()
			},
			wantStatus: 409,
		},
		{
			name: "repository error",
			setupMocks: func(r *UserRepoMock, _ *JwtMakerMock, _ *AuditorMock) {
				r.On("CreateUser", mock.Anything, mock.Anything).Return(nil, errors.New("db error")).Once()
			},
			wantStatus: 500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, jwtMock, auditor := new(UserRepoMock), new(JwtMakerMock), new(AuditorMock)
			svc := auth.New(repo, jwtMock, auditor, newNoopLogger())
			tt.setupMocks(repo, jwtMock, auditor)

			res, err := svc.Register(context.Background(), req)
			if tt.wantStatus != 0 {
				require.Error(t, err)
				assert.Equal(t, tt.wantStatus, apperr.Status(err))
				auditor.AssertNotCalled(t, "Record", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "token", res.Token)
				assert.Equal(t, "u1", res.User.ID)
			}
			repo.AssertExpectations(t)
			jwtMock.AssertExpectations(t)
			auditor.AssertExpectations(t)
		})
	}
}

func TestService_Login(t *testing.T) {
	hash, err := password.GetHash("correctpassword")
	require.NoError(t, err)
	user := &models.User{ID: "u1", Email: "ann@uxerra.pro", PasswordHash: hash, Role: models.RoleAdmin}

	tests := []struct {
		name       string
		password   string
		setupMocks func(r *UserRepoMock, j *JwtMakerMock, a *AuditorMock)
		wantStatus int
	}{
		{
			name:     "successful login",
			password: "correctpassword",
			setupMocks: func(r *UserRepoMock, j *JwtMakerMock, a *AuditorMock) {
				r.On("GetUserByEmail", mock.Anything, "ann@uxerra.pro").Return(user, nil).Once()
				j.On("GenerateToken", "u1", "ann@uxerra.pro", models.RoleAdmin).Return("token", nil).Once()
				a.On("Record", mock.Anything, "u1", "user.login", "user", "u1", mock.Anything).Once()
			},
		},
		{
			name:     "wrong password",
			password: "wrong",
			setupMocks: func(r *UserRepoMock, _ *JwtMakerMock, _ *AuditorMock) {
				r.On("GetUserByEmail", mock.Anything, "ann@uxerra.pro").Return(user, nil).Once()
			},
			wantStatus: 401,
		},
		{
			name:     "unknown email",
			password: "correctpassword",
			setupMocks: func(r *UserRepoMock, _ *JwtMakerMock, _ *AuditorMock) {
				r.On("GetUserByEmail", mock.Anything, "ann@uxerra.pro").Return(nil, repository.ErrNotFound).Once()
			},
			wantStatus: 401,
		},
		{
			name:     "token error",
			password: "correctpassword",
			setupMocks: func(r *UserRepoMock, j *JwtMakerMock, _ *AuditorMock) {
				r.On("GetUserByEmail", mock.Anything, "ann@uxerra.pro").Return(user, nil).Once()
				j.On("GenerateToken", "u1", "ann@uxerra.pro", models.RoleAdmin).Return("", errors.New("sign")).Once()
			},
			wantStatus: 500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, jwtMock, auditor := new(UserRepoMock), new(JwtMakerMock), new(AuditorMock)
			svc := auth.New(repo, jwtMock, auditor, newNoopLogger())
			tt.setupMocks(repo, jwtMock, auditor)

			res, err := svc.Login(context.Background(), models.LoginRequest{Email: "ANN@uxerra.pro", Password: tt.password})
			if tt.wantStatus != 0 {
				require.Error(t, err)
				assert.Equal(t, tt.wantStatus, apperr.Status(err))
			} else {
				require.NoError(t, err)
				assert.Equal(t, "token", res.Token)
			}
			repo.AssertExpectations(t)
			jwtMock.AssertExpectations(t)
			auditor.AssertExpectations(t)
		})
	}
}

func TestService_Profile(t *testing.T) {
	repo := new(UserRepoMock)
	svc := auth.New(repo, new(JwtMakerMock), new(AuditorMock), newNoopLogger())

	repo.On("GetUserByID", mock.Anything, "u1").Return(&models.User{ID: "u1"}, nil).Once()
	repo.On("GetUserByID", mock.Anything, "gone").Return(nil, repository.ErrNotFound).Once()

	u, err := svc.Profile(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)

	_, err = svc.Profile(context.Background(), "gone")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
