package feedback

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thoreinstein.com/quill/pkg/activity"
	quillerrors "thoreinstein.com/quill/pkg/errors"
)

type staticTokens string

func (s staticTokens) Token(context.Context) (string, error) { return string(s), nil }

type failingTokens struct{}

func (failingTokens) Token(context.Context) (string, error) {
	return "", quillerrors.NewAuthError("Token", "not logged in")
}

var samplePayload = activity.Payload{
	Content:     "- hosts: all\n",
	DocumentURI: "file:///site.yml",
	Trigger:     activity.TriggerTabChange,
	ActivityID:  "act-1",
}

func TestClient_Submit(t *testing.T) {
	var (
		gotAuth string
		gotBody map[string]map[string]any
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, FeedbackPath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		gotAuth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := NewClient(server.URL+"/", staticTokens("tok"), time.Second, nil)
	require.NoError(t, err)

	require.NoError(t, client.Submit(context.Background(), samplePayload))

	assert.Equal(t, "Bearer tok", gotAuth)
	require.Contains(t, gotBody, "ansibleContent")
	content := gotBody["ansibleContent"]
	assert.Equal(t, "- hosts: all\n", content["content"])
	assert.Equal(t, "file:///site.yml", content["documentUri"])
	assert.Equal(t, "TAB_CHANGE", content["trigger"])
	assert.Equal(t, "act-1", content["activityId"])
}

func TestClient_SubmitErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewClient(server.URL, staticTokens("tok"), time.Second, nil)
	require.NoError(t, err)

	err = client.Submit(context.Background(), samplePayload)

	var fbErr *quillerrors.FeedbackError
	require.True(t, errors.As(err, &fbErr))
	assert.Equal(t, http.StatusServiceUnavailable, fbErr.StatusCode)
	assert.Equal(t, "upstream down", fbErr.Message)
	assert.True(t, fbErr.Temporary)
}

func TestClient_SubmitWithoutToken(t *testing.T) {
	client, err := NewClient("https://svc.example.com", failingTokens{}, time.Second, nil)
	require.NoError(t, err)

	err = client.Submit(context.Background(), samplePayload)
	assert.True(t, quillerrors.IsFeedbackError(err))
	assert.True(t, quillerrors.IsAuthError(err))
}

func TestClient_SubmitEmptyToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not be sent without a token")
	}))
	defer server.Close()

	client, err := NewClient(server.URL, staticTokens(""), time.Second, nil)
	require.NoError(t, err)

	err = client.Submit(context.Background(), samplePayload)
	require.Error(t, err)
	assert.True(t, quillerrors.IsFeedbackError(err))
	assert.False(t, quillerrors.IsAuthError(err))
	assert.Contains(t, err.Error(), "empty bearer token")
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient("  ", staticTokens("tok"), time.Second, nil)
	assert.True(t, quillerrors.IsConfigError(err))

	_, err = NewClient("https://svc.example.com", nil, time.Second, nil)
	assert.True(t, quillerrors.IsAuthError(err))
}

type recordingSubmitter struct {
	mu       sync.Mutex
	payloads []activity.Payload
	err      error
}

func (r *recordingSubmitter) Submit(_ context.Context, p activity.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, p)
	return r.err
}

func TestDispatcher_SendAndWait(t *testing.T) {
	sub := &recordingSubmitter{}
	d := NewDispatcher(sub, 100, 10, time.Second, nil)

	assert.True(t, d.Send(samplePayload))
	d.Wait()

	require.Len(t, sub.payloads, 1)
	assert.Equal(t, samplePayload, sub.payloads[0])
	assert.Equal(t, Stats{Sent: 1}, d.Stats())
}

func TestDispatcher_FailuresAreSwallowed(t *testing.T) {
	sub := &recordingSubmitter{err: quillerrors.NewFeedbackErrorWithStatus("Submit", 500, "boom")}
	d := NewDispatcher(sub, 100, 10, time.Second, nil)

	assert.True(t, d.Send(samplePayload))
	d.Wait()

	// One attempt only, no retry
	assert.Len(t, sub.payloads, 1)
	assert.Equal(t, Stats{Failed: 1}, d.Stats())
}

func TestFailureKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "missing credentials",
			err:  quillerrors.NewFeedbackErrorWithCause("Submit", "no bearer token", quillerrors.NewAuthError("Token", "not logged in")),
			want: "auth",
		},
		{name: "service unavailable", err: quillerrors.NewFeedbackErrorWithStatus("Submit", 503, "down"), want: "temporary"},
		{name: "bad request", err: quillerrors.NewFeedbackErrorWithStatus("Submit", 400, "bad"), want: "rejected"},
		{name: "empty token", err: quillerrors.NewFeedbackError("Submit", "empty"), want: "rejected"},
		{name: "other", err: errors.New("boom"), want: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, failureKind(tt.err))
		})
	}
}

func TestDispatcher_LogsFailureKind(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	client, err := NewClient("https://svc.example.com", failingTokens{}, time.Second, nil)
	require.NoError(t, err)
	d := NewDispatcher(client, 100, 10, time.Second, logger)

	assert.True(t, d.Send(samplePayload))
	d.Wait()

	assert.Equal(t, Stats{Failed: 1}, d.Stats())
	assert.Contains(t, logs.String(), "feedback submission failed")
	assert.Contains(t, logs.String(), "kind=auth")
}

func TestDispatcher_RateLimitDrops(t *testing.T) {
	sub := &recordingSubmitter{}
	// Effectively no refill during the test
	d := NewDispatcher(sub, 0.001, 2, time.Second, nil)

	accepted := 0
	for i := 0; i < 5; i++ {
		if d.Send(samplePayload) {
			accepted++
		}
	}
	d.Wait()

	assert.Equal(t, 2, accepted)
	assert.Equal(t, Stats{Sent: 2, Dropped: 3}, d.Stats())
}

func TestDispatcher_EndToEnd(t *testing.T) {
	received := make(chan activity.Payload, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req Request
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		received <- req.AnsibleContent
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client, err := NewClient(server.URL, staticTokens("tok"), time.Second, nil)
	require.NoError(t, err)
	d := NewDispatcher(client, 10, 1, time.Second, nil)

	d.Send(samplePayload)
	d.Wait()

	select {
	case got := <-received:
		assert.Equal(t, samplePayload, got)
	default:
		t.Fatal("server did not receive the payload")
	}
}

func TestSwitch_NoDispatcherDiscards(t *testing.T) {
	var logs bytes.Buffer
	sw := NewSwitch(nil, slog.New(slog.NewTextHandler(&logs, nil)))

	assert.False(t, sw.Active())
	assert.False(t, sw.Send(samplePayload))
	sw.Wait()

	assert.Equal(t, Stats{}, sw.Stats())
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "no endpoint configured")
}

func TestSwitch_ReplaceDrainsEveryDispatcher(t *testing.T) {
	first := &recordingSubmitter{}
	second := &recordingSubmitter{}

	sw := NewSwitch(NewDispatcher(first, 100, 10, time.Second, nil), nil)
	assert.True(t, sw.Send(samplePayload))

	sw.Replace(NewDispatcher(second, 100, 10, time.Second, nil))
	assert.True(t, sw.Send(samplePayload))
	assert.True(t, sw.Send(samplePayload))
	sw.Wait()

	assert.Len(t, first.payloads, 1)
	assert.Len(t, second.payloads, 2)
	assert.Equal(t, Stats{Sent: 3}, sw.Stats())

	sw.Replace(nil)
	assert.False(t, sw.Active())
	assert.False(t, sw.Send(samplePayload))
	assert.Equal(t, Stats{Sent: 3}, sw.Stats())
}
