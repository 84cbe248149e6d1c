package metrics

import (
	"testing"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserverCountsOutcomesAndBytes(t *testing.T) {
	reg := promclient.NewRegistry()
	o, err := NewPrometheusObserver("test_media", reg)
	if err != nil {
		t.Fatalf("new observer: %v", err)
	}

	o.RecordUpload("poster", "success", 2048)
	o.RecordUpload("poster", "invalid_file", 999)
	o.RecordStage("transcoded", 30*time.Millisecond)
	o.RecordOrphan()

	if got := testutil.ToFloat64(o.uploads.WithLabelValues("poster", "success")); got != 1 {
		t.Fatalf("expected 1 success, got %v", got)
	}
	if got := testutil.ToFloat64(o.uploadedBytes.WithLabelValues("poster")); got != 2048 {
		t.Fatalf("expected failed upload bytes to be ignored, got %v", got)
	}
	if got := testutil.ToFloat64(o.orphans); got != 1 {
		t.Fatalf("expected 1 orphan, got %v", got)
	}
}

func TestObserverReusesRegisteredCollectors(t *testing.T) {
	reg := promclient.NewRegistry()
	first, err := NewPrometheusObserver("dup", reg)
	if err != nil {
		t.Fatalf("first observer: %v", err)
	}
	second, err := NewPrometheusObserver("dup", reg)
	if err != nil {
		t.Fatalf("second observer should reuse collectors: %v", err)
	}

	first.RecordDelete("explicit", "success")
	second.RecordDelete("explicit", "success")

	if got := testutil.ToFloat64(second.deletes.WithLabelValues("explicit", "success")); got != 2 {
		t.Fatalf("expected shared counter to reach 2, got %v", got)
	}
}

func TestNilObserverIsSafe(t *testing.T) {
	var o *PrometheusObserver
	o.RecordUpload("poster", "success", 1)
	o.RecordStage("stored", time.Millisecond)
	o.RecordDelete("explicit", "success")
	o.RecordCleanupFailure("storage")
	o.RecordOrphan()
}
