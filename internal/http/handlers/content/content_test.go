package content

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/uxerra/studio-api/internal/http/middlewarectx"
	"github.com/uxerra/studio-api/internal/lib/apperr"
	"github.com/uxerra/studio-api/internal/models"
)

const contentID = "c3d4e5f6-a7b8-4c9d-8e0f-1a2b3c4d5e6f"

type ServiceMock struct{ mock.Mock }

func (m *ServiceMock) Generate(ctx context.Context, userID string, req models.GenerateContentRequest) (*models.GeneratedContent, error) {
	args := m.Called(ctx, userID, req)
	c, _ := args.Get(0).(*models.GeneratedContent)
	return c, args.Error(1)
}

func (m *ServiceMock) Regenerate(ctx context.Context, userID, id string) (*models.GeneratedContent, error) {
	args := m.Called(ctx, userID, id)
	c, _ := args.Get(0).(*models.GeneratedContent)
	return c, args.Error(1)
}

func (m *ServiceMock) List(ctx context.Context, userID, contentType string, page, limit int) (*models.Page[*models.GeneratedContent], error) {
	args := m.Called(ctx, userID, contentType, page, limit)
	p, _ := args.Get(0).(*models.Page[*models.GeneratedContent])
	return p, args.Error(1)
}

func (m *ServiceMock) Get(ctx context.Context, userID, id string) (*models.GeneratedContent, error) {
	args := m.Called(ctx, userID, id)
	c, _ := args.Get(0).(*models.GeneratedContent)
	return c, args.Error(1)
}

func (m *ServiceMock) Update(ctx context.Context, userID, id string, req models.UpdateContentRequest) (*models.GeneratedContent, error) {
	args := m.Called(ctx, userID, id, req)
	c, _ := args.Get(0).(*models.GeneratedContent)
	return c, args.Error(1)
}

func (m *ServiceMock) Delete(ctx context.Context, userID, id string) error {
	return m.Called(ctx, userID, id).Error(0)
}

func newRouter(svc *ServiceMock) http.Handler {
	h := New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc, false)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middlewarectx.WithUser(r.Context(), "u1", models.RoleUser)))
		})
	})
	r.Post("/content/generate", h.Generate)
	r.Get("/content", h.List)
	r.Post("/content/{id}/regenerate", h.Regenerate)
	return r
}

func TestGenerate(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		mockErr    error
		callSvc    bool
		wantStatus int
	}{
		{
			name:       "generated",
			body:       `{"contentType":"landing_page","prompt":"A landing page for a bakery","tone":"friendly"}`,
			callSvc:    true,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "unknown tone",
			body:       `{"contentType":"landing_page","prompt":"A landing page for a bakery","tone":"angry"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "prompt too short",
			body:       `{"contentType":"email","prompt":"hi","tone":"casual"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "provider not configured",
			body:       `{"contentType":"blog_post","prompt":"Ten tips for onboarding","tone":"formal"}`,
			mockErr:    apperr.New(apperr.ErrNotConfigured, "ai generation is not configured"),
			callSvc:    true,
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			if tt.callSvc {
				var c *models.GeneratedContent
				if tt.mockErr == nil {
					c = &models.GeneratedContent{ID: contentID, ContentType: "landing_page", HTML: "<h1>Bakery</h1>"}
				}
				svc.On("Generate", mock.Anything, "u1", mock.AnythingOfType("models.GenerateContentRequest")).
					Return(c, tt.mockErr)
			}

			rr := httptest.NewRecorder()
			newRouter(svc).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/content/generate", bytes.NewBufferString(tt.body)))

			assert.Equal(t, tt.wantStatus, rr.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestList_ContentTypeFilter(t *testing.T) {
	svc := new(ServiceMock)
	svc.On("List", mock.Anything, "u1", "email", 2, 10).
		Return(&models.Page[*models.GeneratedContent]{Page: 2, Limit: 10}, nil)
	router := newRouter(svc)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/content?contentType=email&page=2&limit=10", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/content?contentType=poem", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	svc.AssertNumberOfCalls(t, "List", 1)
}

func TestRegenerate_NotFound(t *testing.T) {
	svc := new(ServiceMock)
	svc.On("Regenerate", mock.Anything, "u1", contentID).Return(nil, apperr.New(apperr.ErrNotFound, "content not found"))

	rr := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/content/"+contentID+"/regenerate", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code)
}
