package billing

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/uxerra/studio-api/internal/config"
	"github.com/uxerra/studio-api/internal/models"
	"github.com/uxerra/studio-api/internal/paymentprovider"
)

type RepoMock struct {
	mock.Mock
}

func (m *RepoMock) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *RepoMock) GetUserByStripeCustomerID(ctx context.Context, customerID string) (*models.User, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *RepoMock) SetStripeCustomerID(ctx context.Context, userID, customerID string) error {
	return m.Called(ctx, userID, customerID).Error(0)
}

func (m *RepoMock) GetSubscriptionByUserID(ctx context.Context, userID string) (*models.Subscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *RepoMock) UpsertSubscription(ctx context.Context, sub models.Subscription) (*models.Subscription, error) {
	args := m.Called(ctx, sub)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *RepoMock) CancelSubscriptionByStripeID(ctx context.Context, stripeID string) (*models.Subscription, error) {
	args := m.Called(ctx, stripeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *RepoMock) CancelSubscriptionByUserID(ctx context.Context, userID string) (*models.Subscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
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

func (m *ProviderMock) Configured() bool {
	return m.Called().Bool(0)
}

func (m *ProviderMock) CreateCustomer(ctx context.Context, email, name, userID string) (*paymentprovider.Customer, error) {
	args := m.Called(ctx, email, name, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentprovider.Customer), args.Error(1)
}

func (m *ProviderMock) CreateCheckoutSession(ctx context.Context, p paymentprovider.CheckoutParams) (*paymentprovider.CheckoutSession, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentprovider.CheckoutSession), args.Error(1)
}

func (m *ProviderMock) CreatePortalSession(ctx context.Context, customerID, returnURL string) (*paymentprovider.PortalSession, error) {
	args := m.Called(ctx, customerID, returnURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentprovider.PortalSession), args.Error(1)
}

func (m *ProviderMock) CancelSubscription(ctx context.Context, subscriptionID string) (*paymentprovider.Subscription, error) {
	args := m.Called(ctx, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentprovider.Subscription), args.Error(1)
}

type CacheMock struct {
	mock.Mock
}

func (m *CacheMock) Get(ctx context.Context, key string, result any) (bool, error) {
	args := m.Called(ctx, key, result)
	return args.Bool(0), args.Error(1)
}

func (m *CacheMock) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	return m.Called(ctx, key, value, expiration).Error(0)
}

func (m *CacheMock) Invalidate(ctx context.Context, keys ...string) error {
	return m.Called(ctx, keys).Error(0)
}

type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, message any) error {
	return m.Called(ctx, routingKey, message).Error(0)
}

type AuditorMock struct {
	mock.Mock
}

func (m *AuditorMock) Record(ctx context.Context, userID, action, resource, resourceID string, details map[string]any) {
	m.Called(ctx, userID, action, resource, resourceID, details)
}

type RecorderMock struct {
	mock.Mock
}

func (m *RecorderMock) WebhookEvent(provider, eventType, status string) {
	m.Called(provider, eventType, status)
}

const (
	testSecret = "whsec_test"
	priceProID = "price_pro"
	priceAgyID = "price_agency"
)

type fixture struct {
	repo      *RepoMock
	provider  *ProviderMock
	cache     *CacheMock
	publisher *PublisherMock
	auditor   *AuditorMock
	metrics   *RecorderMock
	svc       *Service
}

func newFixture() *fixture {
	f := &fixture{
		repo:      new(RepoMock),
		provider:  new(ProviderMock),
		cache:     new(CacheMock),
		publisher: new(PublisherMock),
		auditor:   new(AuditorMock),
		metrics:   new(RecorderMock),
	}
	f.svc = New(f.repo, f.provider, f.cache, f.publisher, f.auditor, f.metrics,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		Options{
			AppURL:        "https://uxerra.pro/",
			WebhookSecret: testSecret,
			Plans: map[string]config.Plan{
				"pro_monthly":    {ID: "pro_monthly", Name: models.PlanPro, PriceID: priceProID},
				"agency_monthly": {ID: "agency_monthly", Name: models.PlanAgency, PriceID: priceAgyID},
			},
		})
	f.svc.recheckDelay = 0
	return f
}

func (f *fixture) assertExpectations(t mock.TestingT) {
	f.repo.AssertExpectations(t)
	f.provider.AssertExpectations(t)
	f.cache.AssertExpectations(t)
	f.publisher.AssertExpectations(t)
	f.auditor.AssertExpectations(t)
	f.metrics.AssertExpectations(t)
}

// expectAfterChange ожидает сброс кеша и публикацию уведомления для userID.
func (f *fixture) expectAfterChange(userID, status string) {
	f.cache.On("Invalidate", mock.Anything, []string{"subscription:" + userID}).Return(nil).Once()
	f.repo.On("GetUserByID", mock.Anything, userID).
		Return(&models.User{ID: userID, Email: userID + "@uxerra.pro", Name: "Owner"}, nil).Maybe()
	f.publisher.On("Publish", mock.Anything, "billing", mock.MatchedBy(func(n models.BillingNotice) bool {
		return n.UserID == userID && n.Status == status && n.Kind == models.NoticeStatusChanged
	})).Return(nil).Once()
}
