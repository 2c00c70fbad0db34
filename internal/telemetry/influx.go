// Package telemetry writes opener handshake timings and gateway event counts
// to InfluxDB. Writes are batched and non-blocking; a slow or missing
// InfluxDB never delays a door decision.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/BrandonDHaskell/doorgate/internal/config"
	"github.com/BrandonDHaskell/doorgate/internal/doorgate/service"
)

const (
	connectTimeout        = 10 * time.Second
	millisecondsPerSecond = 1000

	measurementHandshake = "opener_handshake"
	measurementEvent     = "gateway_event"
)

var (
	ErrDisabled         = errors.New("influxdb disabled")
	ErrConnectionFailed = errors.New("influxdb connection failed")
)

// pointWriter is the part of api.WriteAPI the recorder uses.
type pointWriter interface {
	WritePoint(point *write.Point)
	Flush()
}

// Recorder implements service.Metrics and service.EventSink.
type Recorder struct {
	writer pointWriter
	close  func()
	now    func() time.Time
}

var (
	_ service.Metrics   = (*Recorder)(nil)
	_ service.EventSink = (*Recorder)(nil)
)

// Connect pings InfluxDB and returns a Recorder backed by its non-blocking
// write API. Async write errors are logged.
func Connect(cfg config.InfluxDBConfig, logger *slog.Logger) (*Recorder, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 10
	}

	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batchSize)).
			SetFlushInterval(uint(flushInterval)*millisecondsPerSecond),
	)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	go func() {
		for err := range writeAPI.Errors() {
			logger.Warn("influxdb write failed", "error", err)
		}
	}()

	r := newRecorder(writeAPI)
	r.close = func() {
		writeAPI.Flush()
		client.Close()
	}
	return r, nil
}

func newRecorder(w pointWriter) *Recorder {
	return &Recorder{writer: w, close: w.Flush, now: time.Now}
}

func (r *Recorder) ObserveHandshake(doorID string, ok bool, took time.Duration) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	r.writer.WritePoint(write.NewPoint(
		measurementHandshake,
		map[string]string{"door_id": doorID, "result": result},
		map[string]interface{}{"duration_ms": float64(took) / float64(time.Millisecond)},
		r.now(),
	))
}

// Publish records one event as a counter point. User ids are not written.
func (r *Recorder) Publish(_ context.Context, ev service.Event) {
	at := ev.At
	if at.IsZero() {
		at = r.now()
	}
	r.writer.WritePoint(write.NewPoint(
		measurementEvent,
		map[string]string{"kind": ev.Kind, "door_id": ev.DoorID, "outcome": ev.Outcome},
		map[string]interface{}{"count": 1},
		at,
	))
}

// Close flushes pending points and releases the client.
func (r *Recorder) Close() {
	if r.close != nil {
		r.close()
	}
}
