package newsletter

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/uxerra/studio-api/internal/lib/apperr"
	"github.com/uxerra/studio-api/internal/mailerlite"
	"github.com/uxerra/studio-api/internal/models"
	"github.com/uxerra/studio-api/internal/storage/repository"
)

const secret = "ml_webhook_secret"

type RepoMock struct {
	mock.Mock
}

func (m *RepoMock) UpsertNewsletterSubscriber(ctx context.Context, sub models.NewsletterSubscriber) (*models.NewsletterSubscriber, error) {
	args := m.Called(ctx, sub)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.NewsletterSubscriber), args.Error(1)
}

func (m *RepoMock) GetNewsletterSubscriber(ctx context.Context, email string) (*models.NewsletterSubscriber, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.NewsletterSubscriber), args.Error(1)
}

func (m *RepoMock) ListNewsletterSubscribers(ctx context.Context, status string, limit, offset int) ([]*models.NewsletterSubscriber, int, error) {
	args := m.Called(ctx, status, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*models.NewsletterSubscriber), args.Int(1), args.Error(2)
}

func (m *RepoMock) UpdateNewsletterSubscriber(ctx context.Context, sub models.NewsletterSubscriber) (*models.NewsletterSubscriber, error) {
	args := m.Called(ctx, sub)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.NewsletterSubscriber), args.Error(1)
}

func (m *RepoMock) SetNewsletterSubscriberStatus(ctx context.Context, email, status string) error {
	return m.Called(ctx, email, status).Error(0)
}

func (m *RepoMock) DeleteNewsletterSubscriber(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *RepoMock) CreateWebhookEvent(ctx context.Context, e models.WebhookEvent) (string, error) {
	args := m.Called(ctx, e)
	return args.String(0), args.Error(1)
}

func (m *RepoMock) MarkWebhookEventProcessed(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *RepoMock) MarkWebhookEventFailed(ctx context.Context, id, errText string) error {
	return m.Called(ctx, id, errText).Error(0)
}

type ProviderMock struct {
	mock.Mock
}

func (m *ProviderMock) Subscribe(ctx context.Context, s mailerlite.Subscriber) error {
	return m.Called(ctx, s).Error(0)
}

func (m *ProviderMock) Unsubscribe(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *ProviderMock) UpdateSubscriber(ctx context.Context, email, name string, fields map[string]any) error {
	return m.Called(ctx, email, name, fields).Error(0)
}

func (m *ProviderMock) GroupID() string { return "42" }

type RecorderMock struct {
	mock.Mock
}

func (m *RecorderMock) WebhookEvent(provider, eventType, status string) {
	m.Called(provider, eventType, status)
}

func newService() (*Service, *RepoMock, *ProviderMock, *RecorderMock) {
	repo, provider, rec := new(RepoMock), new(ProviderMock), new(RecorderMock)
	svc := New(repo, provider, rec, secret, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return svc, repo, provider, rec
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestSubscribe(t *testing.T) {
	req := models.SubscribeRequest{Email: " Jane@Example.com ", Name: "Jane"}

	t.Run("new subscriber is added to the group", func(t *testing.T) {
		svc, repo, provider, _ := newService()
		repo.On("GetNewsletterSubscriber", mock.Anything, "jane@example.com").Return(nil, repository.ErrNotFound).Once()
		provider.On("Subscribe", mock.Anything, mailerlite.Subscriber{Email: "jane@example.com", Name: "Jane"}).Return(nil).Once()
		repo.On("UpsertNewsletterSubscriber", mock.Anything, mock.MatchedBy(func(s models.NewsletterSubscriber) bool {
			return s.Status == models.NewsletterActive && assert.ObjectsAreEqual([]string{"42"}, s.Groups)
		})).Return(&models.NewsletterSubscriber{ID: "s1", Email: "jane@example.com", Status: models.NewsletterActive}, nil).Once()

		sub, err := svc.Subscribe(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "s1", sub.ID)
	})

	t.Run("active subscriber conflicts", func(t *testing.T) {
		svc, repo, provider, _ := newService()
		repo.On("GetNewsletterSubscriber", mock.Anything, "jane@example.com").
			Return(&models.NewsletterSubscriber{Status: models.NewsletterActive}, nil).Once()

		_, err := svc.Subscribe(context.Background(), req)
		assert.ErrorIs(t, err, apperr.ErrConflict)
		provider.AssertNotCalled(t, "Subscribe", mock.Anything, mock.Anything)
	})

	t.Run("unsubscribed address resubscribes", func(t *testing.T) {
		svc, repo, provider, _ := newService()
		repo.On("GetNewsletterSubscriber", mock.Anything, "jane@example.com").
			Return(&models.NewsletterSubscriber{Status: models.NewsletterUnsubscribed}, nil).Once()
		provider.On("Subscribe", mock.Anything, mock.Anything).Return(nil).Once()
		repo.On("UpsertNewsletterSubscriber", mock.Anything, mock.Anything).Return(&models.NewsletterSubscriber{ID: "s1"}, nil).Once()

		_, err := svc.Subscribe(context.Background(), req)
		require.NoError(t, err)
	})

	t.Run("provider not configured", func(t *testing.T) {
		svc, repo, provider, _ := newService()
		repo.On("GetNewsletterSubscriber", mock.Anything, "jane@example.com").Return(nil, repository.ErrNotFound).Once()
		provider.On("Subscribe", mock.Anything, mock.Anything).Return(mailerlite.ErrNotConfigured).Once()

		_, err := svc.Subscribe(context.Background(), req)
		assert.Equal(t, 503, apperr.Status(err))
		repo.AssertNotCalled(t, "UpsertNewsletterSubscriber", mock.Anything, mock.Anything)
	})
}

func TestUnsubscribe(t *testing.T) {
	t.Run("unknown email is 404 without provider call", func(t *testing.T) {
		svc, repo, provider, _ := newService()
		repo.On("GetNewsletterSubscriber", mock.Anything, "ghost@example.com").Return(nil, repository.ErrNotFound).Once()

		err := svc.Unsubscribe(context.Background(), "ghost@example.com")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		provider.AssertNotCalled(t, "Unsubscribe", mock.Anything, mock.Anything)
	})

	t.Run("known email", func(t *testing.T) {
		svc, repo, provider, _ := newService()
		repo.On("GetNewsletterSubscriber", mock.Anything, "jane@example.com").Return(&models.NewsletterSubscriber{Email: "jane@example.com"}, nil).Once()
		provider.On("Unsubscribe", mock.Anything, "jane@example.com").Return(nil).Once()
		repo.On("SetNewsletterSubscriberStatus", mock.Anything, "jane@example.com", models.NewsletterUnsubscribed).Return(nil).Once()

		require.NoError(t, svc.Unsubscribe(context.Background(), "jane@example.com"))
		repo.AssertExpectations(t)
	})
}

func TestUpdate_SyncsProvider(t *testing.T) {
	svc, repo, provider, _ := newService()
	repo.On("GetNewsletterSubscriber", mock.Anything, "jane@example.com").
		Return(&models.NewsletterSubscriber{Email: "jane@example.com", Name: "Jane", Status: models.NewsletterActive}, nil).Once()
	provider.On("UpdateSubscriber", mock.Anything, "jane@example.com", "Jane Doe", map[string]any(nil)).Return(nil).Once()
	provider.On("Unsubscribe", mock.Anything, "jane@example.com").Return(nil).Once()
	repo.On("UpdateNewsletterSubscriber", mock.Anything, mock.MatchedBy(func(s models.NewsletterSubscriber) bool {
		return s.Name == "Jane Doe" && s.Status == models.NewsletterUnsubscribed
	})).Return(&models.NewsletterSubscriber{Name: "Jane Doe"}, nil).Once()

	name, status := "Jane Doe", models.NewsletterUnsubscribed
	_, err := svc.Update(context.Background(), "jane@example.com", models.UpdateSubscriberRequest{Name: &name, Status: &status})
	require.NoError(t, err)
	provider.AssertExpectations(t)
}

func TestHandleWebhook(t *testing.T) {
	unsubscribe := []byte(`{"events":[{"type":"subscriber.unsubscribe","data":{"subscriber":{"id":1,"email":"jane@example.com"}}}]}`)
	bounced := []byte(`{"events":[{"type":"subscriber.bounced","data":{"subscriber":{"id":2,"email":"gone@example.com"}}}]}`)
	create := []byte(`{"events":[{"type":"subscriber.create","data":{"subscriber":{"id":3,"email":"new@example.com","name":"New"}}}]}`)

	tests := []struct {
		name       string
		body       []byte
		signature  string
		setup      func(r *RepoMock, rec *RecorderMock)
		wantStatus string
		wantErr    error
	}{
		{
			name:      "bad signature writes nothing",
			body:      unsubscribe,
			signature: "bm9wZQ==",
			setup:     func(*RepoMock, *RecorderMock) {},
			wantErr:   apperr.ErrUnauthorized,
		},
		{
			name:      "empty batch",
			body:      []byte(`{"events":[]}`),
			signature: sign([]byte(`{"events":[]}`)),
			setup:     func(*RepoMock, *RecorderMock) {},
			wantErr:   apperr.ErrValidation,
		},
		{
			name:      "unsubscribe mirrored",
			body:      unsubscribe,
			signature: sign(unsubscribe),
			setup: func(r *RepoMock, rec *RecorderMock) {
				r.On("CreateWebhookEvent", mock.Anything, mock.MatchedBy(func(e models.WebhookEvent) bool {
					return e.Provider == models.ProviderMailerLite && string(e.Payload) == string(unsubscribe)
				})).Return("ev1", nil).Once()
				r.On("SetNewsletterSubscriberStatus", mock.Anything, "jane@example.com", models.NewsletterUnsubscribed).Return(nil).Once()
				r.On("MarkWebhookEventProcessed", mock.Anything, "ev1").Return(nil).Once()
				rec.On("WebhookEvent", models.ProviderMailerLite, "subscriber.unsubscribe", models.WebhookProcessed).Once()
			},
			wantStatus: models.WebhookProcessed,
		},
		{
			name:      "bounce for unknown address is not a failure",
			body:      bounced,
			signature: sign(bounced),
			setup: func(r *RepoMock, rec *RecorderMock) {
				r.On("CreateWebhookEvent", mock.Anything, mock.Anything).Return("ev2", nil).Once()
				r.On("SetNewsletterSubscriberStatus", mock.Anything, "gone@example.com", models.NewsletterBounced).Return(repository.ErrNotFound).Once()
				r.On("MarkWebhookEventProcessed", mock.Anything, "ev2").Return(nil).Once()
				rec.On("WebhookEvent", models.ProviderMailerLite, "subscriber.bounced", models.WebhookProcessed).Once()
			},
			wantStatus: models.WebhookProcessed,
		},
		{
			name:      "create fails to store",
			body:      create,
			signature: sign(create),
			setup: func(r *RepoMock, rec *RecorderMock) {
				r.On("CreateWebhookEvent", mock.Anything, mock.Anything).Return("ev3", nil).Once()
				r.On("GetNewsletterSubscriber", mock.Anything, "new@example.com").Return(nil, repository.ErrNotFound).Once()
				r.On("UpsertNewsletterSubscriber", mock.Anything, mock.Anything).Return(nil, errors.New("db down")).Once()
				r.On("MarkWebhookEventFailed", mock.Anything, "ev3", mock.AnythingOfType("string")).Return(nil).Once()
				rec.On("WebhookEvent", models.ProviderMailerLite, "subscriber.create", models.WebhookFailed).Once()
			},
			wantStatus: models.WebhookFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, _, rec := newService()
			tt.setup(repo, rec)

			res, err := svc.HandleWebhook(context.Background(), tt.body, tt.signature)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				repo.AssertNotCalled(t, "CreateWebhookEvent", mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			assert.True(t, res.Received)
			assert.Equal(t, tt.wantStatus, res.Status)
			repo.AssertExpectations(t)
			rec.AssertExpectations(t)
		})
	}
}

func TestHandleWebhook_NoSecret(t *testing.T) {
	repo := new(RepoMock)
	svc := New(repo, new(ProviderMock), new(RecorderMock), "", slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := svc.HandleWebhook(context.Background(), []byte(`{}`), "x")
	assert.ErrorIs(t, err, apperr.ErrNotConfigured)
}
