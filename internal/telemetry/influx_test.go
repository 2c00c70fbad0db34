package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/BrandonDHaskell/doorgate/internal/config"
	"github.com/BrandonDHaskell/doorgate/internal/doorgate/service"
)

type fakeWriter struct {
	points  []*write.Point
	flushes int
}

func (f *fakeWriter) WritePoint(p *write.Point) { f.points = append(f.points, p) }
func (f *fakeWriter) Flush()                    { f.flushes++ }

func tagValue(p *write.Point, key string) string {
	for _, tag := range p.TagList() {
		if tag.Key == key {
			return tag.Value
		}
	}
	return ""
}

func TestConnect_Disabled(t *testing.T) {
	if _, err := Connect(config.InfluxDBConfig{Enabled: false}, nil); !errors.Is(err, ErrDisabled) {
		t.Errorf("err = %v, want ErrDisabled", err)
	}
}

func TestObserveHandshake(t *testing.T) {
	w := &fakeWriter{}
	r := newRecorder(w)

	r.ObserveHandshake("front", true, 250*time.Millisecond)
	r.ObserveHandshake("front", false, 3*time.Second)

	if len(w.points) != 2 {
		t.Fatalf("points = %d, want 2", len(w.points))
	}
	p := w.points[0]
	if p.Name() != measurementHandshake || tagValue(p, "result") != "ok" || tagValue(p, "door_id") != "front" {
		t.Errorf("point = %s %v", p.Name(), p.TagList())
	}
	if f := p.FieldList(); len(f) != 1 || f[0].Value != 250.0 {
		t.Errorf("fields = %+v", f)
	}
	if tagValue(w.points[1], "result") != "failed" {
		t.Errorf("second point result = %q", tagValue(w.points[1], "result"))
	}
}

func TestPublish_EventPoint(t *testing.T) {
	w := &fakeWriter{}
	r := newRecorder(w)
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	r.Publish(context.Background(), service.Event{Kind: "scan", DoorID: "front", UserID: "U1", Outcome: "throttled", At: at})

	p := w.points[0]
	if p.Name() != measurementEvent || tagValue(p, "outcome") != "throttled" || !p.Time().Equal(at) {
		t.Errorf("point = %s %v %v", p.Name(), p.TagList(), p.Time())
	}
	if tagValue(p, "user_id") != "" {
		t.Error("user id written to telemetry")
	}
}

func TestClose_Flushes(t *testing.T) {
	w := &fakeWriter{}
	newRecorder(w).Close()
	if w.flushes != 1 {
		t.Errorf("flushes = %d, want 1", w.flushes)
	}
}
