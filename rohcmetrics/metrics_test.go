package rohcmetrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/rohc-tcp/compressor/rohcmetrics"
)

func counterValue(m prometheus.Metric) float64 {
	var mm dto.Metric
	m.Write(&mm)
	ctr := mm.GetCounter()
	if ctr == nil {
		return 0
	}
	return ctr.GetValue()
}

func gaugeValue(m prometheus.Metric) float64 {
	var mm dto.Metric
	m.Write(&mm)
	g := mm.GetGauge()
	if g == nil {
		return 0
	}
	return g.GetValue()
}

func TestFormatSelectedIncrementsPerLabel(t *testing.T) {
	before := counterValue(rohcmetrics.FormatSelected.WithLabelValues("IR"))
	rohcmetrics.FormatSelected.WithLabelValues("IR").Inc()
	after := counterValue(rohcmetrics.FormatSelected.WithLabelValues("IR"))
	if after != before+1 {
		t.Errorf("FormatSelected{IR} = %v, want %v", after, before+1)
	}
}

func TestContextsActiveTracksIncDec(t *testing.T) {
	before := gaugeValue(rohcmetrics.ContextsActive)
	rohcmetrics.ContextsActive.Inc()
	rohcmetrics.ContextsActive.Inc()
	rohcmetrics.ContextsActive.Dec()
	after := gaugeValue(rohcmetrics.ContextsActive)
	if after != before+1 {
		t.Errorf("ContextsActive = %v, want %v", after, before+1)
	}
}

func TestOptionsTableFullIncrements(t *testing.T) {
	before := counterValue(rohcmetrics.OptionsTableFull)
	rohcmetrics.OptionsTableFull.Inc()
	after := counterValue(rohcmetrics.OptionsTableFull)
	if after != before+1 {
		t.Errorf("OptionsTableFull = %v, want %v", after, before+1)
	}
}
