// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/threadline/internal/model"
)

type fakeAuth struct {
	expired bool
	token   string
}

func (f *fakeAuth) Expired() bool          { return f.expired }
func (f *fakeAuth) Token() (string, error) { return f.token, nil }

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, &fakeAuth{token: "tok"}).WithHTTPClient(srv.Client()).WithMaxRetries(1)
	return c, srv
}

func TestNewClient_NormalizesBase(t *testing.T) {
	c := NewClient("https://example.test/app", &fakeAuth{})
	assert.Equal(t, "https://example.test/app/", c.BaseURL())
	assert.Equal(t, "https://example.test/app/api/thread/", c.threadURL(model.NoThread, false))
	assert.Equal(t, "https://example.test/app/api/thread/7/", c.threadURL(7, false))
	assert.Equal(t, "https://example.test/app/api/thread/7/messages", c.threadURL(7, true))
}

func TestListThreads(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/thread/", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[{"id":3,"title":"Desk","messages":[{"id":5,"data":{"role":"user","content":"hi"},"createdAt":"2024-03-01T10:00:00Z"}]}]`)
	})

	threads, err := c.ListThreads(context.Background())
	require.NoError(t, err)
	require.Len(t, threads, 1)
	got := threads[0].ToModel()
	assert.Equal(t, model.ThreadID(3), got.ID)
	assert.Equal(t, "Desk", got.Title)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, model.RoleUser, got.Messages[0].Role)
	assert.Equal(t, "hi", got.Messages[0].Content)
}

func TestExpiredGateSendsNothing(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, &fakeAuth{expired: true}).WithHTTPClient(srv.Client())
	_, err := c.ListThreads(context.Background())
	assert.ErrorIs(t, err, ErrCredentialExpired)
	_, err = c.PostMessage(context.Background(), 1, "hi")
	assert.ErrorIs(t, err, ErrCredentialExpired)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestFetchErrorMessage(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    string
		wantErr error
	}{
		{"error body", http.StatusBadRequest, `{"error":"bad title","status":400}`, "bad title (Status: 400)", nil},
		{"undecodable", http.StatusBadGateway, `<html>`, fallbackErrorMessage + " (Status: 502)", nil},
		{"not found", http.StatusNotFound, `{"error":"no such thread"}`, "no such thread (Status: 404)", ErrNotFound},
		{"unauthorized", http.StatusUnauthorized, ``, fallbackErrorMessage + " (Status: 401)", ErrAuthFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})
			err := c.RenameThread(context.Background(), 4, "x")
			var fe *FetchError
			require.True(t, errors.As(err, &fe), "got %v", err)
			assert.Equal(t, tt.status, fe.Status)
			assert.Equal(t, tt.want, fe.Message)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestRetryOnServerError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, &fakeAuth{token: "t"}).WithHTTPClient(srv.Client()).WithMaxRetries(2)
	require.NoError(t, c.DeleteThread(context.Background(), 9))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestPostIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, &fakeAuth{token: "t"}).WithHTTPClient(srv.Client()).WithMaxRetries(3)
	_, err := c.PostMessage(context.Background(), 9, "hi")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestPostMessage_Stream(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/thread/12/messages", r.URL.Path)
		var req postMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello", req.Text)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, "[[role:assistant]]Hi")
	})

	reply, err := c.PostMessage(context.Background(), 12, "hello")
	require.NoError(t, err)
	defer reply.Close()
	require.NotNil(t, reply.Body)
	data, err := io.ReadAll(reply.Body)
	require.NoError(t, err)
	assert.Equal(t, "[[role:assistant]]Hi", string(data))
}

func TestCreateThread_JSONThread(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req CreateThreadRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Desk", req.Title)
		assert.Equal(t, "book", req.Message)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":40,"title":"Desk","messages":[]}`)
	})

	reply, err := c.CreateThread(context.Background(), CreateThreadRequest{Title: "Desk", Message: "book"})
	require.NoError(t, err)
	require.NotNil(t, reply.Thread)
	assert.Equal(t, int64(40), reply.Thread.ID)
	assert.Nil(t, reply.Body)
}

func TestPostMessage_JSONMessage(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":41,"data":{"role":"assistant","content":"done"},"createdAt":"2024-03-01T10:00:00Z"}`)
	})

	reply, err := c.PostMessage(context.Background(), 1, "x")
	require.NoError(t, err)
	require.NotNil(t, reply.Message)
	assert.Equal(t, "done", reply.Message.Data.Content)
}

func TestPostMessage_JSONBareMessage(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"role":"assistant","content":"Hello there"}`)
	})

	reply, err := c.PostMessage(context.Background(), 5, "hi")
	require.NoError(t, err)
	require.NotNil(t, reply.Message)
	assert.Equal(t, MessageData{Role: "assistant", Content: "Hello there"}, reply.Message.Data)
	assert.Zero(t, reply.Message.ID)
}

func TestMessageDTO_UnmarshalForms(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want MessageDTO
	}{
		{
			name: "nested data",
			raw:  `{"id":3,"data":{"role":"user","content":"hi"},"createdAt":"2024-01-01T10:00:00Z"}`,
			want: MessageDTO{ID: 3, Data: MessageData{Role: "user", Content: "hi"}, CreatedAt: "2024-01-01T10:00:00Z"},
		},
		{
			name: "bare role and content",
			raw:  `{"role":"assistant","content":"Sure"}`,
			want: MessageDTO{Data: MessageData{Role: "assistant", Content: "Sure"}},
		},
		{
			name: "nested data wins",
			raw:  `{"id":4,"data":{"role":"assistant","content":"a"},"content":"b"}`,
			want: MessageDTO{ID: 4, Data: MessageData{Role: "assistant", Content: "a"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got MessageDTO
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPostMessage_EmptyReply(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
	})

	reply, err := c.PostMessage(context.Background(), 1, "x")
	require.NoError(t, err)
	assert.True(t, reply.Empty())
}

func TestRateLimitHonorsContext(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	c.WithRateLimit(0.001, 1)
	require.NoError(t, c.DeleteThread(context.Background(), 1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, c.DeleteThread(ctx, 1))
}

func TestCalculateBackoff(t *testing.T) {
	assert.Equal(t, 500*time.Millisecond, calculateBackoff(0))
	assert.Equal(t, time.Second, calculateBackoff(1))
	assert.Equal(t, 2*time.Second, calculateBackoff(2))
	assert.Equal(t, retryMaxDelay, calculateBackoff(10))
	assert.Equal(t, retryMaxDelay, calculateBackoff(80))
}
