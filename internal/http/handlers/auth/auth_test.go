package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/uxerra/studio-api/internal/http/middlewarectx"
	"github.com/uxerra/studio-api/internal/http/response"
	"github.com/uxerra/studio-api/internal/lib/apperr"
	"github.com/uxerra/studio-api/internal/models"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*models.AuthResult)
	return res, args.Error(1)
}

func (m *ServiceMock) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*models.AuthResult)
	return res, args.Error(1)
}

func (m *ServiceMock) Profile(ctx context.Context, userID string) (*models.User, error) {
	args := m.Called(ctx, userID)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var resp response.Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func TestRegister(t *testing.T) {
	valid := models.RegisterRequest{Email: "jane@example.com", Password: "secret123", Name: "Jane"}

	tests := []struct {
		name       string
		body       string
		mockRes    *models.AuthResult
		mockErr    error
		callsSvc   bool
		wantStatus int
		wantError  string
	}{
		{
			name:       "registered",
			body:       `{"email":"jane@example.com","password":"secret123","name":"Jane"}`,
			mockRes:    &models.AuthResult{User: &models.User{ID: "u1", Email: valid.Email}, Token: "tok"},
			callsSvc:   true,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "duplicate email",
			body:       `{"email":"jane@example.com","password":"secret123","name":"Jane"}`,
			mockErr:    apperr.New(apperr.ErrConflict, "email already registered"),
			callsSvc:   true,
			wantStatus: http.StatusConflict,
			wantError:  "email already registered",
		},
		{
			name:       "invalid json",
			body:       `{"email":`,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid request body",
		},
		{
			name:       "short password",
			body:       `{"email":"jane@example.com","password":"123","name":"Jane"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "password",
		},
		{
			name:       "empty body",
			body:       ``,
			wantStatus: http.StatusBadRequest,
			wantError:  "request body is empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			if tt.callsSvc {
				svc.On("Register", mock.Anything, valid).Return(tt.mockRes, tt.mockErr).Once()
			}
			h := New(newNoopLogger(), svc, false)

			req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rr := httptest.NewRecorder()
			h.Register(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			resp := decode(t, rr)
			if tt.wantError != "" {
				assert.Equal(t, response.StatusError, resp.Status)
				assert.Contains(t, resp.Error, tt.wantError)
			} else {
				assert.Equal(t, response.StatusOK, resp.Status)
				data := resp.Data.(map[string]any)
				assert.Equal(t, "tok", data["token"])
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	svc := new(ServiceMock)
	svc.On("Login", mock.Anything, models.LoginRequest{Email: "jane@example.com", Password: "wrong"}).
		Return(nil, apperr.New(apperr.ErrUnauthorized, "invalid email or password"))
	h := New(newNoopLogger(), svc, false)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		bytes.NewBufferString(`{"email":"jane@example.com","password":"wrong"}`))
	rr := httptest.NewRecorder()
	h.Login(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "invalid email or password", decode(t, rr).Error)
}

func TestProfile(t *testing.T) {
	svc := new(ServiceMock)
	svc.On("Profile", mock.Anything, "u1").Return(&models.User{ID: "u1", Email: "jane@example.com"}, nil)
	h := New(newNoopLogger(), svc, false)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/profile", nil)
	req = req.WithContext(middlewarectx.WithUser(req.Context(), "u1", models.RoleUser))
	rr := httptest.NewRecorder()
	h.Profile(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	data := decode(t, rr).Data.(map[string]any)
	assert.Equal(t, "jane@example.com", data["email"])
}

func TestProfile_InternalErrorExposure(t *testing.T) {
	for _, expose := range []bool{false, true} {
		svc := new(ServiceMock)
		svc.On("Profile", mock.Anything, "u1").Return(nil, assert.AnError)
		h := New(newNoopLogger(), svc, expose)

		req := httptest.NewRequest(http.MethodGet, "/api/auth/profile", nil)
		req = req.WithContext(middlewarectx.WithUser(req.Context(), "u1", models.RoleUser))
		rr := httptest.NewRecorder()
		h.Profile(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		if expose {
			assert.Equal(t, assert.AnError.Error(), decode(t, rr).Error)
		} else {
			assert.Equal(t, "internal server error", decode(t, rr).Error)
		}
	}
}
