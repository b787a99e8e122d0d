package handlers

import (
	"net/http"
	"testing"

	"github.com/MarceloDuretti/Financeiro-sub001/internal/models"
	"github.com/MarceloDuretti/Financeiro-sub001/internal/protocol"

	"github.com/stretchr/testify/require"
)

func TestCreateCollaborator_JoinsOwnerTenantAndNotifies(t *testing.T) {
	e := newTestEnv(t)
	ownerToken, ownerID := e.register(t, "owner@acme.test")

	w := e.do(t, http.MethodPost, "/api/collaborators", ownerToken, map[string]string{
		"email": "collab@acme.test", "name": "Collab", "password": "password123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	collab := decode[UserResponse](t, w)
	require.Equal(t, models.RoleCollaborator, collab.Role)
	require.NotNil(t, collab.ParentUserID)
	require.Equal(t, ownerID, *collab.ParentUserID)

	calls := e.notifier.all()
	require.Len(t, calls, 1)
	require.Equal(t, ownerID, calls[0].tenant)
	require.Equal(t, ResourceUsers, calls[0].resource)
	require.Equal(t, protocol.ActionCreated, calls[0].action)

	// The collaborator's session resolves to the owner's tenant.
	w = e.do(t, http.MethodPost, "/api/login", "", map[string]string{
		"email": "collab@acme.test", "password": "password123",
	})
	require.Equal(t, http.StatusOK, w.Code)
	collabToken := decode[LoginResponse](t, w).Token

	w = e.do(t, http.MethodGet, "/api/me", collabToken, nil)
	require.Equal(t, ownerID, decode[UserResponse](t, w).TenantID)

	// Collaborators cannot invite.
	w = e.do(t, http.MethodPost, "/api/collaborators", collabToken, map[string]string{
		"email": "third@acme.test", "name": "Third", "password": "password123",
	})
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Len(t, e.notifier.all(), 1)
}

func TestGetUsers_ScopedToTenant(t *testing.T) {
	e := newTestEnv(t)
	acmeToken, _ := e.register(t, "owner@acme.test")
	otherToken, _ := e.register(t, "owner@other.test")

	w := e.do(t, http.MethodPost, "/api/collaborators", acmeToken, map[string]string{
		"email": "collab@acme.test", "name": "Collab", "password": "password123",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = e.do(t, http.MethodGet, "/api/users", acmeToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	acme := decode[struct {
		Users []UserResponse `json:"users"`
		Count int            `json:"count"`
	}](t, w)
	require.Equal(t, 2, acme.Count)

	w = e.do(t, http.MethodGet, "/api/users", otherToken, nil)
	other := decode[struct {
		Count int `json:"count"`
	}](t, w)
	require.Equal(t, 1, other.Count)
}
