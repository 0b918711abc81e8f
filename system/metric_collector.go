package system

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/load"
	"go.uber.org/zap"

	"github.com/KOMKZ/go-aegis/logger"
)

// MetricProvider supplies host-level indicators to the system slot.
// Implementations must be cheap to call on the admission path.
type MetricProvider interface {
	// CurrentLoad one-minute load average, negative when unknown
	CurrentLoad() float64
	// CurrentCpuUsage CPU usage ratio in [0, 1], negative when unknown
	CurrentCpuUsage() float64
}

// DefaultCollectInterval sampling period of the default collector
const DefaultCollectInterval = time.Second

// MetricCollector is the default MetricProvider: a scheduler samples load
// and CPU usage periodically and the admission path reads cached atomics.
type MetricCollector struct {
	scheduler gocron.Scheduler

	loadBits atomic.Uint64
	cpuBits  atomic.Uint64

	log *logger.CtxZapLogger
}

// NewMetricCollector builds and starts a collector sampling every interval
func NewMetricCollector(interval time.Duration) (*MetricCollector, error) {
	if interval <= 0 {
		interval = DefaultCollectInterval
	}
	c := &MetricCollector{log: logger.GetLogger("aegis")}
	c.loadBits.Store(math.Float64bits(-1))
	c.cpuBits.Store(math.Float64bits(-1))

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	if _, err := scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(c.sample),
	); err != nil {
		return nil, err
	}
	c.scheduler = scheduler
	scheduler.Start()
	return c, nil
}

func (c *MetricCollector) sample() {
	if avg, err := load.Avg(); err == nil {
		c.loadBits.Store(math.Float64bits(avg.Load1))
	} else {
		c.log.Debug("load sampling failed", zap.Error(err))
	}
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		c.cpuBits.Store(math.Float64bits(percents[0] / 100.0))
	} else if err != nil {
		c.log.Debug("cpu sampling failed", zap.Error(err))
	}
}

func (c *MetricCollector) CurrentLoad() float64 {
	return math.Float64frombits(c.loadBits.Load())
}

func (c *MetricCollector) CurrentCpuUsage() float64 {
	return math.Float64frombits(c.cpuBits.Load())
}

// Stop shuts the sampling scheduler down
func (c *MetricCollector) Stop() error {
	return c.scheduler.Shutdown()
}
