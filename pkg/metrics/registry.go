package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

type kind uint8

const (
	kindCounter kind = iota
	kindGauge
	kindSummary
)

func (k kind) String() string {
	switch k {
	case kindCounter:
		return "counter"
	case kindGauge:
		return "gauge"
	default:
		return "summary"
	}
}

type series struct {
	kind   kind
	name   string
	labels string
	value  float64
	count  uint64
}

// Registry is an in-process Collector that renders the Prometheus text
// exposition format. Histograms are kept as _sum/_count summaries.
type Registry struct {
	mu     sync.Mutex
	series map[string]*series
}

func NewRegistry() *Registry {
	return &Registry{series: make(map[string]*series)}
}

func (r *Registry) IncCounter(name string, labels map[string]string, delta float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.get(kindCounter, name, labels).value += delta
}

func (r *Registry) SetGauge(name string, labels map[string]string, value float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.get(kindGauge, name, labels).value = value
}

func (r *Registry) ObserveHistogram(name string, labels map[string]string, value float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.get(kindSummary, name, labels)
	s.value += value
	s.count++
}

// Value returns the current value of a counter or gauge, or the sum of a
// histogram.
func (r *Registry) Value(name string, labels map[string]string) (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.series[name+formatLabels(labels)]
	if !ok {
		return 0, false
	}
	return s.value, true
}

func (r *Registry) get(k kind, name string, labels map[string]string) *series {
	ls := formatLabels(labels)
	id := name + ls
	s, ok := r.series[id]
	if !ok {
		s = &series{kind: k, name: name, labels: ls}
		r.series[id] = s
	}
	return s
}

// WriteText renders every series sorted by name.
func (r *Registry) WriteText(w io.Writer) error {
	r.mu.Lock()
	all := make([]series, 0, len(r.series))
	for _, s := range r.series {
		all = append(all, *s)
	}
	r.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].name != all[j].name {
			return all[i].name < all[j].name
		}
		return all[i].labels < all[j].labels
	})

	var (
		b    strings.Builder
		last string
	)
	for _, s := range all {
		if s.name != last {
			fmt.Fprintf(&b, "# TYPE %s %s\n", s.name, s.kind)
			last = s.name
		}
		if s.kind == kindSummary {
			fmt.Fprintf(&b, "%s_sum%s %g\n", s.name, s.labels, s.value)
			fmt.Fprintf(&b, "%s_count%s %d\n", s.name, s.labels, s.count)
			continue
		}
		fmt.Fprintf(&b, "%s%s %g\n", s.name, s.labels, s.value)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%q", k, labels[k])
	}
	return "{" + strings.Join(parts, ",") + "}"
}
