package email_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/email"
)

type postmarkFake struct {
	mu      sync.Mutex
	token   string
	payload map[string]any
	status  int
	resp    string
}

func (f *postmarkFake) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.token = r.Header.Get("X-Postmark-Server-Token")
	_ = json.NewDecoder(r.Body).Decode(&f.payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(f.status)
	_, _ = w.Write([]byte(f.resp))
}

func TestNewPostmarkClient_Config(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		config email.Config
		errMsg string
	}{
		{
			name:   "valid",
			config: email.Config{PostmarkServerToken: "server", SenderEmail: "sender@example.com"},
		},
		{
			name:   "missing server token",
			config: email.Config{SenderEmail: "sender@example.com"},
			errMsg: "PostmarkServerToken is required",
		},
		{
			name:   "missing sender",
			config: email.Config{PostmarkServerToken: "server"},
			errMsg: "SenderEmail is required",
		},
		{
			name:   "invalid sender",
			config: email.Config{PostmarkServerToken: "server", SenderEmail: "sender"},
			errMsg: "SenderEmail must be a valid email address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, err := email.NewPostmarkClient(tt.config)
			if tt.errMsg == "" {
				require.NoError(t, err)
				assert.NotNil(t, client)
				return
			}
			assert.Nil(t, client)
			assert.ErrorIs(t, err, email.ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	assert.Panics(t, func() { email.MustNewPostmarkClient(email.Config{}) })
}

func TestPostmarkClient_SendEmail(t *testing.T) {
	t.Parallel()

	t.Run("sends message with reply-to and both bodies", func(t *testing.T) {
		t.Parallel()

		fake := &postmarkFake{status: http.StatusOK, resp: `{"ErrorCode":0,"Message":"OK","MessageID":"abc"}`}
		srv := httptest.NewServer(fake)
		t.Cleanup(srv.Close)

		client, err := email.NewPostmarkClient(email.Config{
			PostmarkServerToken: "owner-key",
			PostmarkBaseURL:     srv.URL,
			SenderEmail:         "noreply@example.com",
			Timeout:             time.Second,
		})
		require.NoError(t, err)

		err = client.SendEmail(context.Background(), email.SendEmailParams{
			SendTo:   "owner@example.com",
			ReplyTo:  "jane@example.com",
			Subject:  "New notification from Jane",
			BodyHTML: "<p>hi</p>",
			BodyText: "hi",
			Tag:      "notification",
		})
		require.NoError(t, err)

		fake.mu.Lock()
		defer fake.mu.Unlock()
		assert.Equal(t, "owner-key", fake.token)
		assert.Equal(t, "noreply@example.com", fake.payload["From"])
		assert.Equal(t, "owner@example.com", fake.payload["To"])
		assert.Equal(t, "jane@example.com", fake.payload["ReplyTo"])
		assert.Equal(t, "<p>hi</p>", fake.payload["HtmlBody"])
		assert.Equal(t, "hi", fake.payload["TextBody"])
	})

	t.Run("from override", func(t *testing.T) {
		t.Parallel()

		fake := &postmarkFake{status: http.StatusOK, resp: `{"ErrorCode":0,"Message":"OK"}`}
		srv := httptest.NewServer(fake)
		t.Cleanup(srv.Close)

		client, err := email.NewPostmarkClient(email.Config{
			PostmarkServerToken: "owner-key",
			PostmarkBaseURL:     srv.URL,
			SenderEmail:         "noreply@example.com",
		})
		require.NoError(t, err)

		err = client.SendEmail(context.Background(), email.SendEmailParams{
			From:     "alerts@owner.com",
			SendTo:   "owner@example.com",
			Subject:  "s",
			BodyText: "t",
		})
		require.NoError(t, err)

		fake.mu.Lock()
		defer fake.mu.Unlock()
		assert.Equal(t, "alerts@owner.com", fake.payload["From"])
	})

	t.Run("provider rejection", func(t *testing.T) {
		t.Parallel()

		fake := &postmarkFake{status: http.StatusUnprocessableEntity, resp: `{"ErrorCode":10,"Message":"Bad or missing Server API token."}`}
		srv := httptest.NewServer(fake)
		t.Cleanup(srv.Close)

		client, err := email.NewPostmarkClient(email.Config{
			PostmarkServerToken: "wrong",
			PostmarkBaseURL:     srv.URL,
			SenderEmail:         "noreply@example.com",
		})
		require.NoError(t, err)

		err = client.SendEmail(context.Background(), email.SendEmailParams{
			SendTo:   "owner@example.com",
			Subject:  "s",
			BodyText: "t",
		})
		assert.ErrorIs(t, err, email.ErrFailedToSendEmail)
	})

	t.Run("invalid params never reach the provider", func(t *testing.T) {
		t.Parallel()

		fake := &postmarkFake{status: http.StatusOK, resp: `{}`}
		srv := httptest.NewServer(fake)
		t.Cleanup(srv.Close)

		client, err := email.NewPostmarkClient(email.Config{
			PostmarkServerToken: "k",
			PostmarkBaseURL:     srv.URL,
			SenderEmail:         "noreply@example.com",
		})
		require.NoError(t, err)

		err = client.SendEmail(context.Background(), email.SendEmailParams{SendTo: "owner@example.com"})
		assert.ErrorIs(t, err, email.ErrInvalidParams)

		fake.mu.Lock()
		defer fake.mu.Unlock()
		assert.Empty(t, fake.token)
	})
}
