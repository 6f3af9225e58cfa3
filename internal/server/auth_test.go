package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestSignupLoginMeFlow(t *testing.T) {
	env := setupServer(t)

	cookie := env.signup(t, "owner@example.com")
	env.createOrg(t, cookie, "Acme Coffee")

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(cookie)
	w := env.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decodeBody(t, w)
	require.NotEmpty(t, body["user_id"])
	orgs := body["organizations"].([]any)
	require.Len(t, orgs, 1)
	require.Equal(t, "Acme Coffee", orgs[0].(map[string]any)["name"])

	// Fresh login with the same credentials issues a new session.
	w = env.do(jsonRequest(http.MethodPost, "/auth/login", gin.H{
		"email":    "owner@example.com",
		"password": "correct horse battery",
	}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, "owner@example.com", decodeBody(t, w)["email"])
}

func TestSignupRejectsWeakPassword(t *testing.T) {
	env := setupServer(t)

	w := env.do(jsonRequest(http.MethodPost, "/auth/signup", gin.H{
		"email":    "owner@example.com",
		"password": "short",
	}))
	require.Equal(t, http.StatusBadRequest, w.Code)

	body := decodeBody(t, w)
	payload := body["error"].(map[string]any)
	require.Equal(t, "validation_error", payload["type"])
	errs := payload["errors"].([]any)
	require.Equal(t, "weak_password", errs[0].(map[string]any)["code"])
}

func TestSignupDuplicateEmailConflicts(t *testing.T) {
	env := setupServer(t)

	env.signup(t, "owner@example.com")

	w := env.do(jsonRequest(http.MethodPost, "/auth/signup", gin.H{
		"email":    "owner@example.com",
		"password": "correct horse battery",
	}))
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
}

func TestLoginWrongPasswordUnauthorized(t *testing.T) {
	env := setupServer(t)

	env.signup(t, "owner@example.com")

	w := env.do(jsonRequest(http.MethodPost, "/auth/login", gin.H{
		"email":    "owner@example.com",
		"password": "not the password",
	}))
	require.Equal(t, http.StatusUnauthorized, w.Code, w.Body.String())
}

func TestLogoutClearsSession(t *testing.T) {
	env := setupServer(t)

	cookie := env.signup(t, "owner@example.com")

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(cookie)
	w := env.do(req)
	require.Equal(t, http.StatusNoContent, w.Code)

	// The revoked token no longer authenticates.
	req = httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(cookie)
	w = env.do(req)
	require.Equal(t, http.StatusUnauthorized, w.Code, w.Body.String())
}

func TestAPIRequiresSession(t *testing.T) {
	env := setupServer(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/organizations", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
