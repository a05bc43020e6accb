package api_test

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWebhookRejectsMissingHeader(t *testing.T) {
	resp, err := http.Post(baseURL+"/webhooks/ses", "application/json", bytes.NewBufferString(`{}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebhookRejectsMalformedBody(t *testing.T) {
	req, _ := http.NewRequest(http.MethodPost, baseURL+"/webhooks/ses", bytes.NewBufferString("not json"))
	req.Header.Set("x-amz-sns-message-type", "Notification")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUnsubscribeRejectsTamperedToken(t *testing.T) {
	resp, err := http.Get(baseURL + "/unsubscribe/dGFtcGVyZWQ.bm90YXNpZ25hdHVyZQ")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
