package prom_api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/sirupsen/logrus"

	"github.com/hlstv/hlstv/ktypes"
	"github.com/hlstv/hlstv/noop_api"
	"github.com/hlstv/hlstv/worker"
)

const cpuSampleWindow = time.Second

// PromApi reads config like NoopApi and exports stats and per-channel ffmpeg usage to Prometheus.
type PromApi struct {
	noop_api.NoopApi

	registry *prometheus.Registry
	events   *prometheus.CounterVec
	cpu      *prometheus.GaugeVec
	memory   *prometheus.GaugeVec

	m        sync.Mutex
	config   worker.MetricsConfig
	procs    []ktypes.ChannelProcess
	listener net.Listener
	server   *http.Server
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewPromApi() *PromApi {
	pa := &PromApi{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hlstv_events_total",
			Help: "Events reported by hlstv components.",
		}, []string{"event", "context", "error"}),
		cpu: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hlstv_channel_cpu_percent",
			Help: "CPU usage of the ffmpeg process of a channel.",
		}, []string{"channel"}),
		memory: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hlstv_channel_memory_bytes",
			Help: "Resident memory of the ffmpeg process of a channel.",
		}, []string{"channel"}),
	}
	pa.registry.MustRegister(pa.events, pa.cpu, pa.memory)
	return pa
}

func (pa *PromApi) Stat(isError bool, event string, context string, extra string) {
	pa.events.WithLabelValues(event, context, strconv.FormatBool(isError)).Inc()
}

// Configure sets where metrics are served and which channels are sampled.
func (pa *PromApi) Configure(config worker.MetricsConfig, procs []ktypes.ChannelProcess) {
	pa.m.Lock()
	defer pa.m.Unlock()
	pa.config = config
	pa.procs = procs
}

// Serve starts the /metrics listener and the sampling loop.
func (pa *PromApi) Serve() error {
	pa.m.Lock()
	defer pa.m.Unlock()
	if pa.server != nil {
		return errors.New("metrics already serving")
	}

	addr := fmt.Sprintf("%s:%d", pa.config.Host, pa.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "cannot listen metrics on %s", addr)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(pa.registry, promhttp.HandlerOpts{}))
	pa.listener = listener
	pa.server = &http.Server{Handler: mux, ReadTimeout: 30 * time.Second, WriteTimeout: 30 * time.Second}
	go func(server *http.Server) {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			logrus.Errorf("cannot serve metrics %+v", err)
		}
	}(pa.server)

	interval := pa.config.Interval.Duration
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	pa.cancel = cancel
	pa.done = make(chan struct{})
	go pa.loop(ctx, interval, pa.done)

	logrus.Infof("Serving metrics on %s", listener.Addr())
	return nil
}

// Addr of the metrics listener, empty until Serve.
func (pa *PromApi) Addr() string {
	pa.m.Lock()
	defer pa.m.Unlock()
	if pa.listener == nil {
		return ""
	}
	return pa.listener.Addr().String()
}

func (pa *PromApi) Stop() error {
	pa.m.Lock()
	server, cancel, done := pa.server, pa.cancel, pa.done
	pa.server, pa.cancel, pa.done, pa.listener = nil, nil, nil, nil
	pa.m.Unlock()

	if server == nil {
		return nil
	}
	cancel()
	<-done
	return server.Close()
}

func (pa *PromApi) loop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		pa.Sample(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sample reads CPU and memory of every running channel process.
// Channels are sampled in parallel, so a pass takes one CPU window.
func (pa *PromApi) Sample(ctx context.Context) {
	pa.m.Lock()
	procs := pa.procs
	pa.m.Unlock()

	var wg sync.WaitGroup
	for _, cp := range procs {
		pid := cp.PID()
		if pid == 0 {
			pa.cpu.DeleteLabelValues(cp.Name())
			pa.memory.DeleteLabelValues(cp.Name())
			continue
		}
		wg.Add(1)
		go func(name string, pid int32) {
			defer wg.Done()
			if err := pa.sampleOne(ctx, name, pid); err != nil {
				ktypes.Stat(true, "metrics", name, "")
				logrus.WithField("channel", name).Debugf("Cannot sample ffmpeg: %v", err)
			}
		}(cp.Name(), int32(pid))
	}
	wg.Wait()
}

func (pa *PromApi) sampleOne(ctx context.Context, channel string, pid int32) error {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return errors.Wrapf(err, "no process %d", pid)
	}
	percent, err := p.PercentWithContext(ctx, cpuSampleWindow)
	if err != nil {
		return errors.Wrap(err, "cpu")
	}
	mem, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		return errors.Wrap(err, "memory")
	}
	pa.cpu.WithLabelValues(channel).Set(percent)
	pa.memory.WithLabelValues(channel).Set(float64(mem.RSS))
	return nil
}
