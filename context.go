package aprsis

import (
	"go.uber.org/zap"

	"github.com/hamrelay/aprsis/internal/alarm"
	"github.com/hamrelay/aprsis/internal/metrics"
)

// Context bundles the process-wide collaborators every component
// needs access to but none of them should own: the logger, the
// metrics registry, and the alarm board. It plays the same role as
// the teacher's caddy.Context (a carrier for shared services handed
// down through the lifecycle) scaled down to this core's single App.
type Context struct {
	Log    *zap.Logger
	Metrics *metrics.Registry
	Alarms *alarm.Board
}

func newContext(log *zap.Logger, met *metrics.Registry, alarms *alarm.Board) Context {
	return Context{Log: log, Metrics: met, Alarms: alarms}
}
