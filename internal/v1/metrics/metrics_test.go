package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestConnectionGauge(t *testing.T) {
	before := testutil.ToFloat64(ActiveConnections)

	IncConnection()
	IncConnection()
	assert.Equal(t, before+2, testutil.ToFloat64(ActiveConnections))

	DecConnection()
	assert.Equal(t, before+1, testutil.ToFloat64(ActiveConnections))

	DecConnection()
	assert.Equal(t, before, testutil.ToFloat64(ActiveConnections))
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(ActionsRateLimited)
	ActionsRateLimited.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(ActionsRateLimited))

	framesBefore := testutil.ToFloat64(Frames.WithLabelValues("game_action", "ok"))
	Frames.WithLabelValues("game_action", "ok").Inc()
	assert.Equal(t, framesBefore+1, testutil.ToFloat64(Frames.WithLabelValues("game_action", "ok")))
}

func TestGaugesSettable(t *testing.T) {
	ActiveRooms.Set(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(ActiveRooms))
	ActiveRooms.Set(0)

	QueueDepth.Set(1)
	assert.Equal(t, 1.0, testutil.ToFloat64(QueueDepth))
	QueueDepth.Set(0)
}
