package drivers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/piwi3910/msolo/internal/driver"
	"github.com/piwi3910/msolo/internal/models"
)

func TestBuiltinIsValid(t *testing.T) {
	table := Builtin()
	require.NoError(t, table.Validate())

	assert.Equal(t, []string{"5gr-so", "ever", "onap", "osm"}, table.Tags(models.NFVO))
	assert.Equal(t, []string{"ever"}, table.Tags(models.RANO))
}

func TestBuiltinLookupIsCaseInsensitive(t *testing.T) {
	table := Builtin()

	for _, tag := range []string{"OSM", "Onap", "EVER", "5GR-SO"} {
		_, ok := table.Lookup(models.NFVO, tag)
		assert.True(t, ok, tag)
	}

	_, ok := table.Lookup(models.RANO, "osm")
	assert.False(t, ok)
}

func TestBuiltinFactoriesBuildDrivers(t *testing.T) {
	deps := driver.Dependencies{Logger: zaptest.NewLogger(t)}
	target := driver.Target{
		Type:         models.RANO,
		Orchestrator: models.Orchestrator{ID: "ever1", Type: "ever"},
		Credentials:  models.Credentials{OrchestratorID: "ever1", Host: "ever.local"},
	}

	factory, ok := Builtin().Lookup(models.RANO, "ever")
	require.True(t, ok)
	drv, err := factory(target, deps)
	require.NoError(t, err)
	assert.NotNil(t, drv)
}
