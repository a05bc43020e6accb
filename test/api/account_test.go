package api_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAccountFlow(t *testing.T) {
	email := fmt.Sprintf("flow_%d@example.com", time.Now().UnixNano())

	// Register
	createResp := makeRequest("POST", "/accounts/register", map[string]interface{}{
		"email":    email,
		"name":     uniqueName("Flow User"),
		"password": "password123",
	}, "")
	assert.True(t, createResp.IsSuccess(), "Failed to register: %s", createResp.Message)

	// Duplicate registration is rejected
	dupResp := makeRequest("POST", "/accounts/register", map[string]interface{}{
		"email":    email,
		"name":     uniqueName("Flow User"),
		"password": "password123",
	}, "")
	assert.False(t, dupResp.IsSuccess())

	// Login
	loginResp := makeRequest("POST", "/accounts/login", map[string]string{
		"email":    email,
		"password": "password123",
	}, "")
	assert.True(t, loginResp.IsSuccess(), "Failed to login: %s", loginResp.Message)
	assert.NotEmpty(t, loginResp.GetString("access_token"))

	// Wrong password is rejected
	badResp := makeRequest("POST", "/accounts/login", map[string]string{
		"email":    email,
		"password": "wrong-password",
	}, "")
	assert.False(t, badResp.IsSuccess())

	// Refresh
	refreshResp := makeRequest("POST", "/accounts/refresh", map[string]string{
		"refresh_token": loginResp.GetString("refresh_token"),
	}, "")
	assert.True(t, refreshResp.IsSuccess(), "Failed to refresh: %s", refreshResp.Message)
	assert.NotEmpty(t, refreshResp.GetString("access_token"))
}
