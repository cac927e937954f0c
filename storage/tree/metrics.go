package tree

import (
	"fmt"

	"github.com/VictoriaMetrics/metrics"
)

const (
	metricEncodeErrors = "sertree_encode_errors_total"
	metricDecodeErrors = "sertree_decode_errors_total"
	metricStoreErrors  = "sertree_store_errors_total"
	metricTreesOpened  = "sertree_trees_opened_total"
)

// treeMetrics counts failures per tree
type treeMetrics struct {
	set *metrics.Set
}

func (m treeMetrics) counter(name string, tree string) *metrics.Counter {
	return m.set.GetOrCreateCounter(fmt.Sprintf("%s{tree=%q}", name, tree))
}

func (m treeMetrics) encodeError(tree string) {
	m.counter(metricEncodeErrors, tree).Inc()
}

func (m treeMetrics) decodeError(tree string) {
	m.counter(metricDecodeErrors, tree).Inc()
}

func (m treeMetrics) storeError(tree string) {
	m.counter(metricStoreErrors, tree).Inc()
}

func (m treeMetrics) treeOpened() {
	m.set.GetOrCreateCounter(metricTreesOpened).Inc()
}
