package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/piwi3910/msolo/internal/config"
	"github.com/piwi3910/msolo/internal/driver"
	"github.com/piwi3910/msolo/internal/repository"
)

func testConfig(t *testing.T, redisAddr string, seeds ...repository.Seed) *config.Config {
	t.Helper()

	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	cfg.Server.GinMode = "test"
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = 2 * time.Second
	cfg.Redis.Addresses = []string{redisAddr}
	cfg.Redis.DialTimeout = time.Second
	cfg.Redis.MaxRetries = 0
	cfg.Orchestrators = seeds
	return cfg
}

func TestLoadConfiguration(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "valid",
			content: `
server:
  port: 9090
orchestrators:
  - family: nfvo
    id: osm1
    backend: osm
    host: osm.example.com
`,
		},
		{
			name: "invalid gin mode",
			content: `
server:
  gin_mode: bogus
`,
			wantErr: "invalid configuration",
		},
		{
			name:    "malformed file",
			content: "server: [",
			wantErr: "failed to read config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0600))

			cfg, err := loadConfiguration(path)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 9090, cfg.Server.Port)
			require.Len(t, cfg.Orchestrators, 1)
			assert.Equal(t, "osm1", cfg.Orchestrators[0].ID)
		})
	}
}

func TestInitializeLogger(t *testing.T) {
	cfg := testConfig(t, "localhost:0")

	logger, err := initializeLogger(cfg)
	require.NoError(t, err)
	assert.NotNil(t, logger)

	cfg.Observability.Logging.Level = "loud"
	_, err = initializeLogger(cfg)
	assert.Error(t, err)
}

func TestInitializeComponents(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t, mr.Addr(),
		repository.Seed{Family: "nfvo", ID: "osm1", Backend: "OSM", Host: "osm.example.com"},
		repository.Seed{Family: "rano", ID: "ever1", Backend: "ever", Host: "ever.example.com"},
	)
	logger := zaptest.NewLogger(t)

	components, err := initializeComponents(context.Background(), cfg, logger)
	require.NoError(t, err)
	defer components.Close(logger)

	assert.NotNil(t, components.manager)
	assert.NotNil(t, components.worker)
	assert.NotNil(t, components.poller)

	w := httptest.NewRecorder()
	components.server.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nfvo", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "osm1")

	w = httptest.NewRecorder()
	components.server.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestInitializeComponents_PollingDisabled(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t, mr.Addr())
	cfg.Notifications.Enabled = false
	logger := zaptest.NewLogger(t)

	components, err := initializeComponents(context.Background(), cfg, logger)
	require.NoError(t, err)
	defer components.Close(logger)

	assert.Nil(t, components.poller)
	assert.NotNil(t, components.worker)
}

func TestInitializeVimSync(t *testing.T) {
	logger := zaptest.NewLogger(t)
	iwf, err := repository.NewIWFClient(&repository.IWFConfig{URL: "http://iwf.example.com:8087"}, logger)
	require.NoError(t, err)

	cfg := testConfig(t, "localhost:0")
	cfg.Repository.Type = config.RepositoryIWF
	cfg.Repository.IWF.VimSync = true

	vimSync, err := initializeVimSync(cfg, &applicationComponents{repository: iwf, manager: &driver.Manager{}}, logger)
	require.NoError(t, err)
	assert.NotNil(t, vimSync)

	cfg.Repository.IWF.VimSync = false
	vimSync, err = initializeVimSync(cfg, &applicationComponents{repository: iwf, manager: &driver.Manager{}}, logger)
	require.NoError(t, err)
	assert.Nil(t, vimSync)

	mr := miniredis.RunT(t)
	cfg = testConfig(t, mr.Addr())
	components, err := initializeComponents(context.Background(), cfg, logger)
	require.NoError(t, err)
	defer components.Close(logger)
	assert.Nil(t, components.vimSync)
}

func TestInitializeComponents_Failures(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T) *config.Config
		wantErr string
	}{
		{
			name: "redis unavailable",
			setup: func(t *testing.T) *config.Config {
				mr := miniredis.RunT(t)
				addr := mr.Addr()
				mr.Close()
				return testConfig(t, addr)
			},
			wantErr: "failed to connect to Redis",
		},
		{
			name: "unsupported backend",
			setup: func(t *testing.T) *config.Config {
				mr := miniredis.RunT(t)
				return testConfig(t, mr.Addr(),
					repository.Seed{Family: "nfvo", ID: "x1", Backend: "tacker", Host: "tacker.example.com"})
			},
			wantErr: "orchestrator registry check failed",
		},
		{
			name: "invalid seed",
			setup: func(t *testing.T) *config.Config {
				mr := miniredis.RunT(t)
				return testConfig(t, mr.Addr(), repository.Seed{Family: "nfvo", ID: "x1", Backend: "osm"})
			},
			wantErr: "failed to seed orchestrators",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			components, err := initializeComponents(context.Background(), tt.setup(t), zaptest.NewLogger(t))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Nil(t, components)
		})
	}
}

func TestRunComponentsStopsOnCancel(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t, mr.Addr(),
		repository.Seed{Family: "rano", ID: "ever1", Backend: "ever", Host: "ever.example.com"})
	logger := zaptest.NewLogger(t)

	ctx, cancel := context.WithCancel(context.Background())
	components, err := initializeComponents(ctx, cfg, logger)
	require.NoError(t, err)
	defer components.Close(logger)

	done := make(chan error, 1)
	go func() { done <- runComponents(ctx, cfg, logger, components) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("gateway did not stop")
	}
}
