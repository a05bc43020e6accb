package api_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCampaignFlow(t *testing.T) {
	// Create a custom-list campaign
	createResp := makeRequest("POST", "/campaigns", map[string]interface{}{
		"name":            uniqueName("Test Campaign"),
		"subject":         "Hello {{name}}",
		"message":         "Hi {{name}}, the olympiad registration is open.",
		"use_custom_list": true,
		"email_list":      fmt.Sprintf("list_%d@example.com", time.Now().UnixNano()),
	}, authToken)
	assert.True(t, createResp.IsSuccess(), "Failed to create campaign: %s", createResp.Message)

	campaignID := createResp.GetString("id")
	assert.NotEmpty(t, campaignID)

	// Fetch it back
	getResp := makeRequest("GET", "/campaigns/"+campaignID, nil, authToken)
	assert.True(t, getResp.IsSuccess())
	assert.Equal(t, campaignID, getResp.GetString("id"))

	// Status endpoint is available before dispatch
	statusResp := makeRequest("GET", "/campaigns/"+campaignID+"/status", nil, authToken)
	assert.True(t, statusResp.IsSuccess(), "Failed to get status: %s", statusResp.Message)

	// Pausing a campaign that is not sending is rejected
	pauseResp := makeRequest("POST", "/campaigns/"+campaignID+"/pause", nil, authToken)
	assert.False(t, pauseResp.IsSuccess())
}

func TestCampaignValidation(t *testing.T) {
	// Custom list without addresses is rejected
	resp := makeRequest("POST", "/campaigns", map[string]interface{}{
		"name":            uniqueName("Bad Campaign"),
		"subject":         "Subject",
		"message":         "Body",
		"use_custom_list": true,
	}, authToken)
	assert.False(t, resp.IsSuccess())

	// Custom list combined with filters is rejected
	resp = makeRequest("POST", "/campaigns", map[string]interface{}{
		"name":            uniqueName("Bad Campaign"),
		"subject":         "Subject",
		"message":         "Body",
		"use_custom_list": true,
		"email_list":      "someone@example.com",
		"filter_teachers": true,
	}, authToken)
	assert.False(t, resp.IsSuccess())
}

func TestCampaignRequiresAuth(t *testing.T) {
	resp := makeRequest("GET", "/campaigns", nil, "")
	assert.False(t, resp.IsSuccess())
}
