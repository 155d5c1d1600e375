package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/codearena/codearena-go-api/internal/authz"
	"github.com/codearena/codearena-go-api/internal/dto"
	"github.com/codearena/codearena-go-api/internal/handler"
	"github.com/codearena/codearena-go-api/internal/service"
)

type mockUserActionsService struct {
	lastActor    service.Actor
	roleResponse dto.UserRoleChangeResponse
	err          error
}

func (m *mockUserActionsService) DeleteUser(_ context.Context, actor service.Actor, _ dto.DeleteUserRequest) (dto.DeleteUserResponse, error) {
	m.lastActor = actor
	return dto.DeleteUserResponse{}, m.err
}

func (m *mockUserActionsService) SetUserRole(_ context.Context, actor service.Actor, _ dto.SetUserRoleRequest) (dto.UserRoleChangeResponse, error) {
	m.lastActor = actor
	if m.err != nil {
		return dto.UserRoleChangeResponse{}, m.err
	}
	return m.roleResponse, nil
}

func (m *mockUserActionsService) PromoteUser(_ context.Context, actor service.Actor, _ dto.PromoteUserRequest) (dto.UserRoleChangeResponse, error) {
	m.lastActor = actor
	if m.err != nil {
		return dto.UserRoleChangeResponse{}, m.err
	}
	return m.roleResponse, nil
}

func (m *mockUserActionsService) DemoteUser(_ context.Context, actor service.Actor, _ dto.DemoteUserRequest) (dto.UserRoleChangeResponse, error) {
	m.lastActor = actor
	if m.err != nil {
		return dto.UserRoleChangeResponse{}, m.err
	}
	return m.roleResponse, nil
}

func userActionsApp(svc service.UserActionsService) *fiber.App {
	app := fiber.New()
	group := app.Group("/api/v2/dashboard/users", func(c *fiber.Ctx) error {
		c.Locals("user_id", uint(7))
		c.Locals("user_role", "super_admin")
		return c.Next()
	})
	handler.NewUserActionsHandler(svc, zerolog.New(io.Discard)).Register(group)
	return app
}

func decodeResponse(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestUserActionsHandler_SetRoleSuccess(t *testing.T) {
	svc := &mockUserActionsService{roleResponse: dto.UserRoleChangeResponse{
		TargetUserID: 3,
		OldRole:      "user",
		NewRole:      "problem_setter",
		Status:       "completed",
	}}
	app := userActionsApp(svc)

	body, err := json.Marshal(fiber.Map{"new_role": "problem_setter"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPut, "/api/v2/dashboard/users/3/role", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var response struct {
		Success bool                       `json:"success"`
		Data    dto.UserRoleChangeResponse `json:"data"`
		Message string                     `json:"message"`
	}
	decodeResponse(t, resp, &response)
	require.True(t, response.Success)
	require.Equal(t, "user role changed", response.Message)
	require.Equal(t, "problem_setter", response.Data.NewRole)

	// The actor comes from the JWT locals, never from the payload.
	require.Equal(t, uint(7), svc.lastActor.ID)
	require.Equal(t, authz.RoleSuperAdmin, svc.lastActor.Role)
}

func TestUserActionsHandler_DeferredChangeMessage(t *testing.T) {
	svc := &mockUserActionsService{roleResponse: dto.UserRoleChangeResponse{
		TargetUserID:     3,
		RequiresApproval: true,
		Status:           "pending_approval",
	}}
	app := userActionsApp(svc)

	body, err := json.Marshal(fiber.Map{"new_role": "admin"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPut, "/api/v2/dashboard/users/3/role", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var response struct {
		Message string `json:"message"`
	}
	decodeResponse(t, resp, &response)
	require.Equal(t, "role change submitted for approval", response.Message)
}

func TestUserActionsHandler_ServiceErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		statusCode int
	}{
		{name: "forbidden", err: service.ErrForbidden, statusCode: fiber.StatusForbidden},
		{name: "not found", err: service.ErrNotFound, statusCode: fiber.StatusNotFound},
		{name: "conflict", err: service.ErrConflict, statusCode: fiber.StatusConflict},
		{name: "validation", err: service.ErrValidation, statusCode: fiber.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := userActionsApp(&mockUserActionsService{err: tc.err})

			req := httptest.NewRequest(http.MethodPost, "/api/v2/dashboard/users/3/promote", nil)
			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, tc.statusCode, resp.StatusCode)
		})
	}
}

func TestUserActionsHandler_InvalidIdentifier(t *testing.T) {
	app := userActionsApp(&mockUserActionsService{})

	req := httptest.NewRequest(http.MethodDelete, "/api/v2/dashboard/users/abc", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
