package users

import (
	"bytes"
	"context"
	"errors"
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

type ServiceMock struct{ mock.Mock }

func (m *ServiceMock) Get(ctx context.Context, userID string) (*models.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *ServiceMock) UpdateProfile(ctx context.Context, userID string, req models.UpdateProfileRequest) (*models.User, error) {
	args := m.Called(ctx, userID, req)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *ServiceMock) ChangePassword(ctx context.Context, userID string, req models.ChangePasswordRequest) error {
	return m.Called(ctx, userID, req).Error(0)
}

func (m *ServiceMock) DeleteAccount(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func newRouter(svc *ServiceMock, expose bool) http.Handler {
	h := New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc, expose)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middlewarectx.WithUser(r.Context(), "u1", models.RoleUser)))
		})
	})
	r.Get("/users/me", h.Me)
	r.Put("/users/me", h.Update)
	r.Delete("/users/me", h.Delete)
	r.Post("/users/me/change-password", h.ChangePassword)
	return r
}

func TestUpdate(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		mockErr    error
		callSvc    bool
		wantStatus int
	}{
		{"rename", `{"name":"Jane Doe"}`, nil, true, http.StatusOK},
		{"invalid email", `{"email":"not-an-email"}`, nil, false, http.StatusBadRequest},
		{"email taken", `{"email":"taken@uxerra.pro"}`, apperr.New(apperr.ErrConflict, "email already in use"), true, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			if tt.callSvc {
				var u *models.User
				if tt.mockErr == nil {
					u = &models.User{ID: "u1", Name: "Jane Doe"}
				}
				svc.On("UpdateProfile", mock.Anything, "u1", mock.AnythingOfType("models.UpdateProfileRequest")).
					Return(u, tt.mockErr)
			}

			rr := httptest.NewRecorder()
			newRouter(svc, false).ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/users/me", bytes.NewBufferString(tt.body)))

			assert.Equal(t, tt.wantStatus, rr.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	svc := new(ServiceMock)
	svc.On("ChangePassword", mock.Anything, "u1", models.ChangePasswordRequest{CurrentPassword: "old", NewPassword: "newpassword"}).
		Return(apperr.New(apperr.ErrUnauthorized, "current password is incorrect"))

	rr := httptest.NewRecorder()
	body := `{"currentPassword":"old","newPassword":"newpassword"}`
	newRouter(svc, false).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/users/me/change-password", bytes.NewBufferString(body)))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "current password is incorrect")
}

func TestDelete_InternalErrorExposure(t *testing.T) {
	for _, expose := range []bool{false, true} {
		svc := new(ServiceMock)
		svc.On("DeleteAccount", mock.Anything, "u1").Return(errors.New("connection reset"))

		rr := httptest.NewRecorder()
		newRouter(svc, expose).ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/users/me", nil))

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		if expose {
			assert.Contains(t, rr.Body.String(), "connection reset")
		} else {
			assert.NotContains(t, rr.Body.String(), "connection reset")
		}
	}
}
