package detect

import "github.com/aegisflux/obsfabric/internal/fabric"

// Finding is the Anomaly Record Payload from spec.md §3.
type Finding struct {
	MetricKey            string
	Value                float64
	WindowSize           int
	Mean                 float64
	StdDev               float64
	ZScore               float64
	Method               string
	Confidence           float64
	ContributingMethods  []MethodScore
	// Labels is a supplemented field (not in spec.md's payload list)
	// carrying best-effort context tags, grounded on the correlator's
	// extractLabelsFromEvent.
	Labels []string
}

func (f Finding) ToPayload() fabric.Payload {
	p := fabric.Payload{
		"metric_key":  fabric.Str(f.MetricKey),
		"value":       fabric.Float(f.Value),
		"window_size": fabric.Int(int64(f.WindowSize)),
		"mean":        fabric.Float(f.Mean),
		"std_dev":     fabric.Float(f.StdDev),
		"z_score":     fabric.Float(f.ZScore),
		"method":      fabric.Str(f.Method),
		"confidence":  fabric.Float(f.Confidence),
	}
	if len(f.ContributingMethods) > 0 {
		contrib := make([]fabric.Value, len(f.ContributingMethods))
		for i, m := range f.ContributingMethods {
			contrib[i] = fabric.Map(fabric.Payload{
				"method": fabric.Str(m.Method),
				"score":  fabric.Float(m.Score),
			})
		}
		p["contributing_methods"] = fabric.Array(contrib)
	}
	if len(f.Labels) > 0 {
		labels := make([]fabric.Value, len(f.Labels))
		for i, l := range f.Labels {
			labels[i] = fabric.Str(l)
		}
		p["labels"] = fabric.Array(labels)
	}
	return p
}

func buildLabels(metricKey, method string) []string {
	return []string{"metric_key=" + metricKey, "method=" + method}
}
