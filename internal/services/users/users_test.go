package users

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
	"github.com/uxerra/studio-api/internal/lib/password"
	"github.com/uxerra/studio-api/internal/models"
	"github.com/uxerra/studio-api/internal/storage/repository"
)

type RepoMock struct {
	mock.Mock
}

func (m *RepoMock) CreateUser(ctx context.Context, user models.User) (*models.User, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *RepoMock) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *RepoMock) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, int, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*models.User), args.Int(1), args.Error(2)
}

func (m *RepoMock) UpdateUser(ctx context.Context, user models.User) (*models.User, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *RepoMock) DeleteUser(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type CancelerMock struct {
	mock.Mock
}

func (m *CancelerMock) CancelSubscription(ctx context.Context, userID string) (*models.Subscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

type AuditorMock struct {
	mock.Mock
}

func (m *AuditorMock) Record(ctx context.Context, userID, action, resource, resourceID string, details map[string]any) {
	m.Called(ctx, userID, action, resource, resourceID, details)
}

func newService() (*Service, *RepoMock, *CancelerMock, *AuditorMock) {
	repo, billing, auditor := new(RepoMock), new(CancelerMock), new(AuditorMock)
	return New(repo, billing, auditor, slog.New(slog.NewTextHandler(io.Discard, nil))), repo, billing, auditor
}

func ptr[T any](v T) *T { return &v }

func TestUpdateProfile(t *testing.T) {
	t.Run("updates name and email", func(t *testing.T) {
		svc, repo, _, auditor := newService()
		repo.On("GetUserByID", mock.Anything, "u1").Return(&models.User{ID: "u1", Email: "old@uxerra.pro", Name: "Old"}, nil).Once()
		repo.On("UpdateUser", mock.Anything, mock.MatchedBy(func(u models.User) bool {
			return u.Email == "new@uxerra.pro" && u.Name == "New"
		})).Return(&models.User{ID: "u1", Email: "new@uxerra.pro", Name: "New"}, nil).Once()
		auditor.On("Record", mock.Anything, "u1", "user.update", "user", "u1", mock.Anything).Once()

		got, err := svc.UpdateProfile(context.Background(), "u1", models.UpdateProfileRequest{
			Name: ptr(" New "), Email: ptr("NEW@uxerra.pro"),
		})
		require.NoError(t, err)
		assert.Equal(t, "new@uxerra.pro", got.Email)
		auditor.AssertExpectations(t)
	})

	t.Run("email taken", func(t *testing.T) {
		svc, repo, _, auditor := newService()
		repo.On("GetUserByID", mock.Anything, "u1").Return(&models.User{ID: "u1"}, nil).Once()
		repo.On("UpdateUser", mock.Anything, mock.Anything).Return(nil, repository.ErrAlreadyExists).Once()

		_, err := svc.UpdateProfile(context.Background(), "u1", models.UpdateProfileRequest{Email: ptr("taken@uxerra.pro")})
		assert.ErrorIs(t, err, apperr.ErrConflict)
		auditor.AssertNotCalled(t, "Record", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestChangePassword(t *testing.T) {
	hash, err := password.GetHash("oldpassword")
	require.NoError(t, err)

	t.Run("wrong current password", func(t *testing.T) {
		svc, repo, _, _ := newService()
		repo.On("GetUserByID", mock.Anything, "u1").Return(&models.User{ID: "u1", PasswordHash: hash}, nil).Once()

		err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{CurrentPassword: "nope", NewPassword: "newpassword"})
		assert.ErrorIs(t, err, apperr.ErrValidation)
		repo.AssertNotCalled(t, "UpdateUser", mock.Anything, mock.Anything)
	})

	t.Run("success", func(t *testing.T) {
		svc, repo, _, auditor := newService()
		repo.On("GetUserByID", mock.Anything, "u1").Return(&models.User{ID: "u1", PasswordHash: hash}, nil).Once()
		repo.On("UpdateUser", mock.Anything, mock.MatchedBy(func(u models.User) bool {
			return password.CompareHash(u.PasswordHash, "newpassword") == nil
		})).Return(&models.User{ID: "u1"}, nil).Once()
		auditor.On("Record", mock.Anything, "u1", "user.change_password", "user", "u1", mock.Anything).Once()

		err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{CurrentPassword: "oldpassword", NewPassword: "newpassword"})
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})
}

func TestDeleteAccount(t *testing.T) {
	tests := []struct {
		name       string
		cancelErr  error
		deleteErr  error
		wantDelete bool
		wantErr    error
		wantStatus int
	}{
		{name: "with subscription", wantDelete: true},
		{name: "without subscription", cancelErr: apperr.New(apperr.ErrNotFound, "subscription not found"), wantDelete: true},
		{name: "provider failure keeps account", cancelErr: errors.New("stripe down"), wantStatus: 500},
		{name: "already gone", deleteErr: repository.ErrNotFound, wantDelete: true, wantErr: apperr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, billing, auditor := newService()
			billing.On("CancelSubscription", mock.Anything, "u1").Return(nil, tt.cancelErr).Once()
			if tt.wantDelete {
				repo.On("DeleteUser", mock.Anything, "u1").Return(tt.deleteErr).Once()
			}
			if tt.wantErr == nil && tt.wantStatus == 0 {
				// актор пустой: audit_logs.user_id ссылается на удаленную строку
				auditor.On("Record", mock.Anything, "", "user.delete", "user", "u1", mock.Anything).Once()
			}

			err := svc.DeleteAccount(context.Background(), "u1")
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantStatus != 0:
				require.Error(t, err)
				assert.Equal(t, tt.wantStatus, apperr.Status(err))
				repo.AssertNotCalled(t, "DeleteUser", mock.Anything, mock.Anything)
			default:
				require.NoError(t, err)
			}
			repo.AssertExpectations(t)
			auditor.AssertExpectations(t)
		})
	}
}

func TestAdminOperations(t *testing.T) {
	t.Run("list clamps paging", func(t *testing.T) {
		svc, repo, _, _ := newService()
		repo.On("ListUsers", mock.Anything, 20, 20).Return([]*models.User{{ID: "u1"}}, 21, nil).Once()

		page, err := svc.List(context.Background(), 2, 1000)
		require.NoError(t, err)
		assert.Equal(t, 21, page.Total)
		assert.Equal(t, 20, page.Limit)
	})

	t.Run("create duplicate", func(t *testing.T) {
		svc, repo, _, _ := newService()
		repo.On("CreateUser", mock.Anything, mock.Anything).Return(nil, repository.ErrAlreadyExists).Once()

		_, err := svc.Create(context.Background(), "admin", models.AdminCreateUserRequest{
			Email: "a@uxerra.pro", Password: "password123", Name: "Ann", Role: models.RoleAdmin,
		})
		assert.ErrorIs(t, err, apperr.ErrConflict)
	})

	t.Run("cannot demote self", func(t *testing.T) {
		svc, repo, _, _ := newService()
		repo.On("GetUserByID", mock.Anything, "admin").Return(&models.User{ID: "admin", Role: models.RoleAdmin}, nil).Once()

		_, err := svc.Update(context.Background(), "admin", "admin", models.AdminUpdateUserRequest{Role: ptr(models.RoleUser)})
		assert.ErrorIs(t, err, apperr.ErrValidation)
		repo.AssertNotCalled(t, "UpdateUser", mock.Anything, mock.Anything)
	})

	t.Run("update role", func(t *testing.T) {
		svc, repo, _, auditor := newService()
		repo.On("GetUserByID", mock.Anything, "u1").Return(&models.User{ID: "u1", Role: models.RoleUser}, nil).Once()
		repo.On("UpdateUser", mock.Anything, mock.MatchedBy(func(u models.User) bool {
			return u.Role == models.RoleAdmin
		})).Return(&models.User{ID: "u1", Role: models.RoleAdmin}, nil).Once()
		auditor.On("Record", mock.Anything, "admin", "admin.user.update", "user", "u1", mock.Anything).Once()

		got, err := svc.Update(context.Background(), "admin", "u1", models.AdminUpdateUserRequest{Role: ptr(models.RoleAdmin)})
		require.NoError(t, err)
		assert.True(t, got.IsAdmin())
		auditor.AssertExpectations(t)
	})

	t.Run("cannot delete self", func(t *testing.T) {
		svc, _, billing, _ := newService()
		err := svc.Delete(context.Background(), "admin", "admin")
		assert.ErrorIs(t, err, apperr.ErrValidation)
		billing.AssertNotCalled(t, "CancelSubscription", mock.Anything, mock.Anything)
	})
}
