// Package metrics exports ledger activity as prometheus counters.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"account_manager/internal/ledger"
)

type Metrics struct {
	operations  *prometheus.CounterVec
	lamports    *prometheus.CounterVec
	initialized prometheus.Counter
	reserve     prometheus.Counter
}

// New registers the ledger counters with r.
func New(r prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "operations_total",
			Help:      "number of ledger operations by kind and result code",
		}, []string{"kind", "code"}),
		lamports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "lamports_total",
			Help:      "lamports moved by committed operations",
		}, []string{"kind"}),
		initialized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "records_initialized_total",
			Help:      "number of records created by a first deposit",
		}),
		reserve: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "reserve_lamports_total",
			Help:      "lamports locked as rent-exempt reserve",
		}),
	}
	errs := []error{
		r.Register(m.operations),
		r.Register(m.lamports),
		r.Register(m.initialized),
		r.Register(m.reserve),
	}
	return m, errors.Join(errs...)
}

// ObserveOperation counts a finished deposit or withdrawal.
func (m *Metrics) ObserveOperation(kind string, receipt *ledger.Receipt, err error) {
	code := "OK"
	if err != nil {
		code = ledger.Code(err)
	}
	m.operations.WithLabelValues(kind, code).Inc()
	if err != nil || receipt == nil {
		return
	}
	m.lamports.WithLabelValues(kind).Add(float64(receipt.Amount))
	if receipt.Initialized {
		m.initialized.Inc()
		m.reserve.Add(float64(receipt.Reserve))
	}
}

var _ ledger.Observer = (*Metrics)(nil)
