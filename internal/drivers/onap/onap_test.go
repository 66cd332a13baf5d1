package onap

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/piwi3910/msolo/internal/driver"
	"github.com/piwi3910/msolo/internal/lcmerr"
	"github.com/piwi3910/msolo/internal/models"
)

type recorded struct {
	method      string
	path        string
	query       url.Values
	contentType string
	body        string
}

func setup(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (driver.Driver, *recorded) {
	t.Helper()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		*rec = recorded{
			method:      r.Method,
			path:        r.URL.Path,
			query:       r.URL.Query(),
			contentType: r.Header.Get("Content-Type"),
			body:        string(raw),
		}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	drv, err := New(driver.Target{
		Type:         models.NFVO,
		Orchestrator: models.Orchestrator{ID: "onap1", Type: BackendType},
		Credentials:  models.Credentials{OrchestratorID: "onap1", Host: host, Port: port},
	}, driver.Dependencies{Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	return drv, rec
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNew(t *testing.T) {
	_, err := New(driver.Target{Credentials: models.Credentials{Host: "h"}}, driver.Dependencies{})
	assert.Error(t, err)

	_, err = New(driver.Target{}, driver.Dependencies{Logger: zaptest.NewLogger(t)})
	assert.Error(t, err)

	drv, err := New(driver.Target{Credentials: models.Credentials{Host: "onap.local"}},
		driver.Dependencies{Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	assert.Equal(t, "http://onap.local:8080", drv.(*Driver).client.BaseURL())
}

func TestGetNsListPassesThrough(t *testing.T) {
	drv, rec := setup(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{{"id": "ns1", "nsState": "INSTANTIATED"}})
	})

	body, headers, err := drv.GetNsList(context.Background(), driver.Args{Query: url.Values{"limit": {"5"}}})
	require.NoError(t, err)
	assert.Equal(t, "/instances", rec.path)
	assert.Equal(t, "5", rec.query.Get("limit"))
	assert.Empty(t, headers)

	list, ok := body.([]any)
	require.True(t, ok)
	require.Len(t, list, 1)
	assert.Equal(t, "ns1", list[0].(map[string]any)["id"])
}

func TestCreateNs(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		drv, rec := setup(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Location", "http://onap:8080/instances/ns-9")
			writeJSON(w, http.StatusCreated, map[string]any{"id": "ns-9"})
		})

		body, headers, err := drv.CreateNs(context.Background(), driver.Args{Payload: map[string]any{"nsdId": "nsd1"}})
		require.NoError(t, err)
		assert.Equal(t, http.MethodPost, rec.method)
		assert.Equal(t, "/create", rec.path)
		assert.JSONEq(t, `{"nsdId":"nsd1"}`, rec.body)
		assert.Equal(t, "ns-9", body.(map[string]any)["id"])
		assert.Equal(t, "/nfvo/onap1/ns_instances/ns-9", headers["location"])
	})

	t.Run("unknown descriptor", func(t *testing.T) {
		drv, _ := setup(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		_, _, err := drv.CreateNs(context.Background(), driver.Args{Payload: map[string]any{"nsdId": "nsd1"}})
		assert.ErrorIs(t, err, lcmerr.ErrNsdNotFound)
		assert.Contains(t, lcmerr.Description(err), "nsd1")
	})
}

func TestGetNsNotFound(t *testing.T) {
	drv, rec := setup(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, _, err := drv.GetNs(context.Background(), "ns1", driver.Args{})
	assert.ErrorIs(t, err, lcmerr.ErrNsNotFound)
	assert.Equal(t, "/instances/ns1", rec.path)
}

func TestLifecycleActions(t *testing.T) {
	tests := []struct {
		name        string
		call        func(driver.Driver) (driver.Headers, error)
		wantMethod  string
		wantPath    string
		wantBody    string
		wantJSONReq bool
	}{
		{
			name: "delete",
			call: func(d driver.Driver) (driver.Headers, error) {
				return d.DeleteNs(context.Background(), "ns1", driver.Args{})
			},
			wantMethod: http.MethodDelete,
			wantPath:   "/delete/ns1",
		},
		{
			name: "instantiate",
			call: func(d driver.Driver) (driver.Headers, error) {
				return d.InstantiateNs(context.Background(), "ns1", driver.Args{Payload: map[string]any{"nsFlavourId": "df"}})
			},
			wantMethod: http.MethodPost,
			wantPath:   "/instantiate/ns1",
		},
		{
			name: "terminate",
			call: func(d driver.Driver) (driver.Headers, error) {
				return d.TerminateNs(context.Background(), "ns1", driver.Args{Payload: map[string]any{"terminationTime": "now"}})
			},
			wantMethod:  http.MethodPost,
			wantPath:    "/terminate/ns1",
			wantBody:    `{"terminationTime":"now"}`,
			wantJSONReq: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drv, rec := setup(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Location", "http://onap/ns_lcm_op_occs/op-7")
				w.WriteHeader(http.StatusAccepted)
			})

			headers, err := tt.call(drv)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMethod, rec.method)
			assert.Equal(t, tt.wantPath, rec.path)
			if tt.wantJSONReq {
				assert.Equal(t, "application/json", rec.contentType)
				assert.JSONEq(t, tt.wantBody, rec.body)
			} else {
				assert.Empty(t, rec.body)
			}
			assert.Equal(t, "/nfvo/onap1/ns_lcm_op_occs/op-7", headers["location"])
		})
	}
}

func TestLifecycleActionNotFound(t *testing.T) {
	drv, _ := setup(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := drv.TerminateNs(context.Background(), "ns1", driver.Args{})
	assert.ErrorIs(t, err, lcmerr.ErrNsNotFound)
}

func TestScaleNotImplemented(t *testing.T) {
	drv, _ := setup(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Error("scale must not reach the backend")
	})

	_, err := drv.ScaleNs(context.Background(), "ns1", driver.Args{})
	assert.ErrorIs(t, err, lcmerr.ErrNotImplemented)
	assert.Equal(t, http.StatusNotImplemented, lcmerr.HTTPStatus(err))
}

func TestGetOpList(t *testing.T) {
	t.Run("all operations", func(t *testing.T) {
		drv, rec := setup(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, []any{})
		})
		_, _, err := drv.GetOpList(context.Background(), driver.Args{})
		require.NoError(t, err)
		assert.Equal(t, "/ns_lcm_op_occs", rec.path)
	})

	t.Run("filtered by instance", func(t *testing.T) {
		drv, rec := setup(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, []any{})
		})
		_, _, err := drv.GetOpList(context.Background(), driver.Args{Query: url.Values{"nsInstanceId": {"ns1"}}})
		require.NoError(t, err)
		assert.Equal(t, "/ns_lcm_op_occs/ns_id/ns1", rec.path)
		assert.Equal(t, "ns1", rec.query.Get("nsInstanceId"))
	})

	t.Run("unknown instance", func(t *testing.T) {
		drv, _ := setup(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		_, _, err := drv.GetOpList(context.Background(), driver.Args{Query: url.Values{"nsInstanceId": {"ns1"}}})
		assert.ErrorIs(t, err, lcmerr.ErrNsNotFound)
	})
}

func TestGetOp(t *testing.T) {
	drv, rec := setup(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, _, err := drv.GetOp(context.Background(), "op1", driver.Args{})
	assert.ErrorIs(t, err, lcmerr.ErrNsOpNotFound)
	assert.Equal(t, "/ns_lcm_op_occs/op1", rec.path)
}
