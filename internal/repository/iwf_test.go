package repository

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/piwi3910/msolo/internal/lcmerr"
	"github.com/piwi3910/msolo/internal/models"
)

// fakeIWF is a minimal HAL repository.
type fakeIWF struct {
	srv *httptest.Server

	associated string
	deleted    string
	accept     string
}

func newFakeIWF(t *testing.T) *fakeIWF {
	t.Helper()
	f := &fakeIWF{}
	mux := http.NewServeMux()

	hal := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", halJSON)
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}

	nfvo := func() map[string]any {
		return map[string]any{
			"id": 1, "name": "ITALY_TURIN", "type": "OSM", "uri": nil,
			"createdAt": "2026-01-02T03:04:05Z", "updatedAt": nil,
			"credentials": map[string]any{
				"id": 7, "host": "192.168.1.2", "port": 9999,
				"username": "admin", "password": "admin", "project": "admin",
			},
			"_links": map[string]any{
				"self": map[string]any{"href": f.srv.URL + "/nfvOrchestrators/1"},
				"site": map[string]any{"href": f.srv.URL + "/nfvOrchestrators/1/site"},
			},
		}
	}
	sub := func() map[string]any {
		return map[string]any{
			"id": 3, "nsInstanceId": "ns-1", "callbackUri": "http://127.0.0.1:8082/",
			"notificationTypes": []string{models.NsLcmOperationOccurrenceNotification},
			"_links": map[string]any{
				"nfvOrchestrators": map[string]any{"href": f.srv.URL + "/subscriptions/3/nfvOrchestrators"},
			},
		}
	}

	mux.HandleFunc("GET /nfvOrchestrators/1", func(w http.ResponseWriter, r *http.Request) {
		f.accept = r.Header.Get("Accept")
		hal(w, http.StatusOK, nfvo())
	})
	mux.HandleFunc("GET /nfvOrchestrators/2", func(w http.ResponseWriter, _ *http.Request) {
		n := nfvo()
		n["id"] = 2
		n["credentials"] = nil
		delete(n["_links"].(map[string]any), "site")
		hal(w, http.StatusOK, n)
	})
	mux.HandleFunc("GET /nfvOrchestrators/1/site", func(w http.ResponseWriter, _ *http.Request) {
		hal(w, http.StatusOK, map[string]any{"name": "ITALY_TURIN"})
	})
	mux.HandleFunc("GET /nfvOrchestrators", func(w http.ResponseWriter, _ *http.Request) {
		hal(w, http.StatusOK, map[string]any{"_embedded": map[string]any{"nfvOrchestrators": []any{nfvo()}}})
	})
	mux.HandleFunc("GET /ranOrchestrators", func(w http.ResponseWriter, _ *http.Request) {
		hal(w, http.StatusOK, map[string]any{"_embedded": map[string]any{"ranOrchestrators": []any{}}})
	})
	mux.HandleFunc("GET /nfvOrchestrators/1/subscriptions", func(w http.ResponseWriter, _ *http.Request) {
		hal(w, http.StatusOK, map[string]any{"_embedded": map[string]any{"subscriptions": []any{sub()}}})
	})
	mux.HandleFunc("GET /nfvOrchestrators/1/subscriptions/3", func(w http.ResponseWriter, _ *http.Request) {
		hal(w, http.StatusOK, sub())
	})
	mux.HandleFunc("GET /subscriptions/search/findByNsInstanceId", func(w http.ResponseWriter, r *http.Request) {
		items := []any{}
		if r.URL.Query().Get("nsInstanceId") == "ns-1" {
			items = append(items, sub())
		}
		hal(w, http.StatusOK, map[string]any{"_embedded": map[string]any{"subscriptions": items}})
	})
	mux.HandleFunc("POST /subscriptions", func(w http.ResponseWriter, _ *http.Request) {
		hal(w, http.StatusCreated, sub())
	})
	mux.HandleFunc("PUT /subscriptions/3/nfvOrchestrators", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != uriList {
			w.WriteHeader(http.StatusUnsupportedMediaType)
			return
		}
		raw, _ := io.ReadAll(r.Body)
		f.associated = string(raw)
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("DELETE /subscriptions/3", func(w http.ResponseWriter, _ *http.Request) {
		f.deleted = "3"
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			hal(w, http.StatusOK, map[string]any{"_links": map[string]any{}})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func newIWF(t *testing.T, url string) *IWFClient {
	t.Helper()
	c, err := NewIWFClient(&IWFConfig{
		URL:             url,
		Timeout:         2 * time.Second,
		MaxRetries:      2,
		InitialInterval: time.Millisecond,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return c
}

func TestNewIWFClient(t *testing.T) {
	_, err := NewIWFClient(nil, nil)
	assert.Error(t, err)

	_, err = NewIWFClient(&IWFConfig{URL: "iwf:8087"}, zaptest.NewLogger(t))
	assert.Error(t, err)

	c, err := NewIWFClient(nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8087", c.baseURL)
}

func TestIWFGetOrchestrator(t *testing.T) {
	f := newFakeIWF(t)
	c := newIWF(t, f.srv.URL)

	orch, err := c.GetOrchestrator(context.Background(), models.NFVO, "1")
	require.NoError(t, err)
	assert.Equal(t, "1", orch.ID)
	assert.Equal(t, "ITALY_TURIN", orch.Name)
	assert.Equal(t, "ITALY_TURIN", orch.Site)
	assert.Equal(t, "osm", orch.BackendType())
	assert.Empty(t, orch.URI)
	require.NotNil(t, orch.CreatedAt)
	assert.Nil(t, orch.UpdatedAt)
	assert.Equal(t, halJSON, f.accept)

	_, err = c.GetOrchestrator(context.Background(), models.NFVO, "99")
	assert.ErrorIs(t, err, lcmerr.ErrOrchestratorNotFound)
}

func TestIWFGetCredentials(t *testing.T) {
	f := newFakeIWF(t)
	c := newIWF(t, f.srv.URL)

	cred, err := c.GetCredentials(context.Background(), models.NFVO, "1")
	require.NoError(t, err)
	assert.Equal(t, models.Credentials{
		OrchestratorID: "1",
		Host:           "192.168.1.2",
		Port:           9999,
		User:           "admin",
		Password:       "admin",
		Project:        "admin",
	}, *cred)

	_, err = c.GetCredentials(context.Background(), models.NFVO, "2")
	assert.ErrorIs(t, err, lcmerr.ErrCredentialsNotFound)
}

func TestIWFListOrchestrators(t *testing.T) {
	f := newFakeIWF(t)
	c := newIWF(t, f.srv.URL)

	nfvos, err := c.ListOrchestrators(context.Background(), models.NFVO)
	require.NoError(t, err)
	require.Len(t, nfvos, 1)
	assert.Equal(t, "ITALY_TURIN", nfvos[0].Site)

	ranos, err := c.ListOrchestrators(context.Background(), models.RANO)
	require.NoError(t, err)
	assert.Empty(t, ranos)

	_, err = c.ListOrchestrators(context.Background(), models.OrchestratorType("vim"))
	assert.ErrorIs(t, err, lcmerr.ErrBadRequest)
}

func TestIWFSubscriptions(t *testing.T) {
	f := newFakeIWF(t)
	c := newIWF(t, f.srv.URL)
	ctx := context.Background()

	created, err := c.CreateSubscription(ctx, "1", &models.Subscription{
		NsInstanceID:      "ns-1",
		NotificationTypes: []string{models.NsLcmOperationOccurrenceNotification},
		CallbackURI:       "http://127.0.0.1:8082/",
	})
	require.NoError(t, err)
	assert.Equal(t, "3", created.ID)
	assert.Equal(t, "1", created.OrchestratorID)
	assert.Equal(t, f.srv.URL+"/nfvOrchestrators/1", f.associated)

	list, err := c.ListSubscriptions(ctx, "1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "ns-1", list[0].NsInstanceID)

	_, err = c.ListSubscriptions(ctx, "99")
	assert.ErrorIs(t, err, lcmerr.ErrOrchestratorNotFound)

	got, err := c.GetSubscription(ctx, "1", "3")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8082/", got.CallbackURI)

	_, err = c.GetSubscription(ctx, "1", "4")
	assert.ErrorIs(t, err, lcmerr.ErrSubscriptionNotFound)

	found, err := c.SearchSubscriptionsByNsInstance(ctx, "ns-1")
	require.NoError(t, err)
	assert.Len(t, found, 1)

	none, err := c.SearchSubscriptionsByNsInstance(ctx, "ns-2")
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, c.DeleteSubscription(ctx, "1", "3"))
	assert.Equal(t, "3", f.deleted)

	err = c.DeleteSubscription(ctx, "1", "4")
	assert.ErrorIs(t, err, lcmerr.ErrSubscriptionNotFound)
}

func TestIWFCreateSubscriptionRejectsBadCallback(t *testing.T) {
	f := newFakeIWF(t)
	c := newIWF(t, f.srv.URL)

	_, err := c.CreateSubscription(context.Background(), "1", &models.Subscription{
		NsInstanceID: "ns-1", CallbackURI: "not-a-url",
	})
	assert.ErrorIs(t, err, ErrInvalidCallback)
	assert.Empty(t, f.associated)
}

func TestIWFPing(t *testing.T) {
	f := newFakeIWF(t)
	c := newIWF(t, f.srv.URL)
	assert.NoError(t, c.Ping(context.Background()))
	assert.NoError(t, c.Close())
}

func TestIWFRetriesTransportFailures(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c := newIWF(t, addr)
	_, err := c.ListOrchestrators(context.Background(), models.NFVO)
	require.Error(t, err)
	assert.ErrorIs(t, err, lcmerr.ErrServerError)
	assert.Contains(t, lcmerr.Description(err), "problem contacting iwf repository")
}

func TestIWFDoesNotRetryHTTPErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	c := newIWF(t, srv.URL)
	_, err := c.GetOrchestrator(context.Background(), models.NFVO, "1")
	assert.ErrorIs(t, err, lcmerr.ErrServerError)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
