package bootstrap

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/poolfund-backend/pkg/config"
	"github.com/angelmondragon/poolfund-backend/pkg/logger"
)

func TestCloseRunsInReverseAndCollectsErrors(t *testing.T) {
	var order []string
	rt := &Runtime{}
	rt.onClose("database", func() error { order = append(order, "database"); return nil })
	rt.onClose("redis", func() error { order = append(order, "redis"); return errors.New("conn reset") })
	rt.onClose("metrics listener", func() error { order = append(order, "metrics listener"); return nil })

	err := rt.Close()
	assert.Equal(t, []string{"metrics listener", "redis", "database"}, order)
	assert.ErrorContains(t, err, "close redis: conn reset")

	require.NoError(t, rt.Close(), "second close is a no-op")
	assert.Len(t, order, 3)
}

func TestCloseOnNilRuntime(t *testing.T) {
	var rt *Runtime
	assert.NoError(t, rt.Close())
}

func TestServeMetricsDisabledWithoutAddress(t *testing.T) {
	rt := &Runtime{
		Config: &config.Config{},
		Logger: logger.New(logger.Options{ServiceName: "bootstrap-test", Output: io.Discard}),
	}
	rt.ServeMetrics(context.Background())
	assert.Empty(t, rt.closers)
}
