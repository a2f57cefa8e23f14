package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestGenerationMetricsExportsCountersAndHistograms(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewGenerationMetrics(reg)

	metrics.ObserveDuration("video", "kling", 1500*time.Millisecond)
	metrics.IncSuccess("video", "kling")
	metrics.IncFailure("video", "kling")
	metrics.ObservePollAttempts("kling", 4)
	metrics.AddCreditsDebited("video", 1)
	metrics.AddCreditsDebited("video", 5)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "generation_success", "kind", "video"); err != nil {
		t.Fatalf("fetch success: %v", err)
	} else if got != 1 {
		t.Fatalf("expected success=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "generation_failure", "kind", "video"); err != nil {
		t.Fatalf("fetch failure: %v", err)
	} else if got != 1 {
		t.Fatalf("expected failure=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "credits_debited_total", "kind", "video"); err != nil {
		t.Fatalf("fetch credits: %v", err)
	} else if got != 6 {
		t.Fatalf("expected credits=6, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "generation_duration_seconds", "provider", "kling"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "generation_poll_attempts", "provider", "kling"); err != nil {
		t.Fatalf("fetch poll attempts: %v", err)
	} else if got != 4 {
		t.Fatalf("expected poll attempts sum 4, got %f", got)
	}
}

func TestGenerationMetricsNilSafe(t *testing.T) {
	var metrics *GenerationMetrics
	metrics.ObserveDuration("script", "openai", time.Second)
	metrics.IncSuccess("script", "openai")
	metrics.IncFailure("script", "openai")
	metrics.ObservePollAttempts("kling", 1)
	metrics.AddCreditsDebited("script", 1)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
