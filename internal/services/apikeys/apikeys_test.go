package apikeys

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/uxerra/studio-api/internal/lib/apikey"
	"github.com/uxerra/studio-api/internal/lib/apperr"
	"github.com/uxerra/studio-api/internal/models"
	"github.com/uxerra/studio-api/internal/services/audit"
	"github.com/uxerra/studio-api/internal/storage/repository"
)

type RepoMock struct {
	mock.Mock
}

func (m *RepoMock) CreateAPIKey(ctx context.Context, k models.APIKey) (*models.APIKey, error) {
	args := m.Called(ctx, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.APIKey), args.Error(1)
}

func (m *RepoMock) GetAPIKey(ctx context.Context, id, userID string) (*models.APIKey, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.APIKey), args.Error(1)
}

func (m *RepoMock) GetAPIKeyByHash(ctx context.Context, hash string) (*models.APIKey, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.APIKey), args.Error(1)
}

func (m *RepoMock) ListAPIKeys(ctx context.Context, userID string) ([]*models.APIKey, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.APIKey), args.Error(1)
}

func (m *RepoMock) UpdateAPIKey(ctx context.Context, k models.APIKey) (*models.APIKey, error) {
	args := m.Called(ctx, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.APIKey), args.Error(1)
}

func (m *RepoMock) DeleteAPIKey(ctx context.Context, id, userID string) error {
	return m.Called(ctx, id, userID).Error(0)
}

func (m *RepoMock) TouchAPIKey(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *RepoMock) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type AuditorMock struct {
	mock.Mock
}

func (m *AuditorMock) Record(ctx context.Context, userID, action, resource, resourceID string, details map[string]any) {
	m.Called(ctx, userID, action, resource, resourceID, details)
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newService() (*Service, *RepoMock, *AuditorMock) {
	repo, auditor := new(RepoMock), new(AuditorMock)
	svc := New(repo, auditor, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.now = func() time.Time { return fixedNow }
	return svc, repo, auditor
}

func TestCreate(t *testing.T) {
	past := fixedNow.Add(-time.Hour)

	t.Run("returns plaintext once and stores only the hash", func(t *testing.T) {
		svc, repo, auditor := newService()
		var stored models.APIKey
		repo.On("CreateAPIKey", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			stored = args.Get(1).(models.APIKey)
		}).Return(&models.APIKey{ID: "k1", UserID: "u1", Name: "ci", Permissions: []string{"read"}}, nil).Once()
		auditor.On("Record", mock.Anything, "u1", audit.ActionAPIKeyCreate, audit.ResourceAPIKey, "k1", mock.Anything).Once()

		issued, err := svc.Create(context.Background(), "u1", models.CreateAPIKeyRequest{Name: "ci", Permissions: []string{"read"}})
		require.NoError(t, err)
		assert.True(t, apikey.LooksValid(issued.Key))
		assert.Equal(t, apikey.Hash(issued.Key), stored.KeyHash)
		assert.NotContains(t, stored.KeyPrefix, issued.Key[len(stored.KeyPrefix):])
		auditor.AssertExpectations(t)
	})

	t.Run("expiry in the past is rejected", func(t *testing.T) {
		svc, repo, _ := newService()
		_, err := svc.Create(context.Background(), "u1", models.CreateAPIKeyRequest{Name: "ci", Permissions: []string{"read"}, ExpiresAt: &past})
		assert.ErrorIs(t, err, apperr.ErrValidation)
		repo.AssertNotCalled(t, "CreateAPIKey", mock.Anything, mock.Anything)
	})
}

func TestRegenerate_ReplacesHash(t *testing.T) {
	svc, repo, auditor := newService()
	repo.On("GetAPIKey", mock.Anything, "k1", "u1").Return(&models.APIKey{ID: "k1", UserID: "u1", KeyHash: "old"}, nil).Once()
	repo.On("UpdateAPIKey", mock.Anything, mock.MatchedBy(func(k models.APIKey) bool {
		return k.KeyHash != "old" && len(k.KeyHash) == 64
	})).Return(&models.APIKey{ID: "k1", UserID: "u1"}, nil).Once()
	auditor.On("Record", mock.Anything, "u1", audit.ActionAPIKeyRegen, audit.ResourceAPIKey, "k1", mock.Anything).Once()

	issued, err := svc.Regenerate(context.Background(), "u1", "k1")
	require.NoError(t, err)
	assert.NotEmpty(t, issued.Key)
	repo.AssertExpectations(t)
}

func TestUpdateAndDelete_OtherOwner(t *testing.T) {
	svc, repo, auditor := newService()
	repo.On("GetAPIKey", mock.Anything, "k1", "intruder").Return(nil, repository.ErrNotFound).Once()
	repo.On("DeleteAPIKey", mock.Anything, "k1", "intruder").Return(repository.ErrNotFound).Once()

	name := "renamed"
	_, err := svc.Update(context.Background(), "intruder", "k1", models.UpdateAPIKeyRequest{Name: &name})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(context.Background(), "intruder", "k1"), apperr.ErrNotFound)
	auditor.AssertNotCalled(t, "Record", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAuthenticate(t *testing.T) {
	key, hash, _, err := apikey.Generate()
	require.NoError(t, err)
	expired := fixedNow.Add(-time.Minute)
	user := &models.User{ID: "u1", Role: models.RoleUser}

	tests := []struct {
		name      string
		key       string
		setup     func(r *RepoMock)
		wantErr   error
		wantTouch bool
	}{
		{
			name:    "malformed key skips lookup",
			key:     "ux_nothex",
			setup:   func(*RepoMock) {},
			wantErr: apperr.ErrUnauthorized,
		},
		{
			name: "unknown key",
			key:  key,
			setup: func(r *RepoMock) {
				r.On("GetAPIKeyByHash", mock.Anything, hash).Return(nil, repository.ErrNotFound).Once()
			},
			wantErr: apperr.ErrUnauthorized,
		},
		{
			name: "expired key",
			key:  key,
			setup: func(r *RepoMock) {
				r.On("GetAPIKeyByHash", mock.Anything, hash).Return(&models.APIKey{ID: "k1", UserID: "u1", ExpiresAt: &expired}, nil).Once()
			},
			wantErr: apperr.ErrUnauthorized,
		},
		{
			name: "valid key",
			key:  key,
			setup: func(r *RepoMock) {
				r.On("GetAPIKeyByHash", mock.Anything, hash).Return(&models.APIKey{ID: "k1", UserID: "u1"}, nil).Once()
				r.On("GetUserByID", mock.Anything, "u1").Return(user, nil).Once()
				r.On("TouchAPIKey", mock.Anything, "k1").Return(errors.New("db busy")).Once()
			},
			wantTouch: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, _ := newService()
			tt.setup(repo)

			got, k, err := svc.Authenticate(context.Background(), tt.key)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				repo.AssertNotCalled(t, "TouchAPIKey", mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "u1", got.ID)
			assert.Equal(t, "k1", k.ID)
			repo.AssertExpectations(t)
		})
	}
}
