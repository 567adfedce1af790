package metrics

import "github.com/prometheus/client_golang/prometheus"

// FulfillmentMetrics counts the order, payment, and shipping operations the
// orchestrator performs.
type FulfillmentMetrics struct {
	ordersCreated        *prometheus.CounterVec
	paymentVerifications *prometheus.CounterVec
	invoiceSends         *prometheus.CounterVec
	awbAssignments       *prometheus.CounterVec
	statusSyncUpdates    prometheus.Counter
}

// NewFulfillmentMetrics registers the fulfillment metrics on the provided registerer.
func NewFulfillmentMetrics(reg prometheus.Registerer) *FulfillmentMetrics {
	if reg == nil {
		return &FulfillmentMetrics{}
	}
	ordersCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Orders created, labelled by payment method.",
	}, []string{"method"})
	paymentVerifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_verifications_total",
		Help: "Payment verification attempts by result.",
	}, []string{"result"})
	invoiceSends := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "invoice_sends_total",
		Help: "Invoice dispatch attempts by result.",
	}, []string{"result"})
	awbAssignments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "awb_assignments_total",
		Help: "AWB assignment attempts by result.",
	}, []string{"result"})
	statusSyncUpdates := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shipment_status_sync_updates_total",
		Help: "Shipment rows updated by the carrier status sync.",
	})
	reg.MustRegister(ordersCreated, paymentVerifications, invoiceSends, awbAssignments, statusSyncUpdates)
	return &FulfillmentMetrics{
		ordersCreated:        ordersCreated,
		paymentVerifications: paymentVerifications,
		invoiceSends:         invoiceSends,
		awbAssignments:       awbAssignments,
		statusSyncUpdates:    statusSyncUpdates,
	}
}

// IncOrderCreated counts a created order for the given payment method.
func (m *FulfillmentMetrics) IncOrderCreated(method string) {
	if m == nil || m.ordersCreated == nil {
		return
	}
	m.ordersCreated.WithLabelValues(normalizeLabel(method)).Inc()
}

// IncPaymentVerification counts a verification attempt outcome.
func (m *FulfillmentMetrics) IncPaymentVerification(result string) {
	if m == nil || m.paymentVerifications == nil {
		return
	}
	m.paymentVerifications.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncInvoiceSend counts an invoice dispatch outcome.
func (m *FulfillmentMetrics) IncInvoiceSend(result string) {
	if m == nil || m.invoiceSends == nil {
		return
	}
	m.invoiceSends.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncAWBAssignment counts an AWB assignment outcome.
func (m *FulfillmentMetrics) IncAWBAssignment(result string) {
	if m == nil || m.awbAssignments == nil {
		return
	}
	m.awbAssignments.WithLabelValues(normalizeLabel(result)).Inc()
}

// AddStatusSyncUpdates counts rows touched by a status sync pass.
func (m *FulfillmentMetrics) AddStatusSyncUpdates(n int) {
	if m == nil || m.statusSyncUpdates == nil || n <= 0 {
		return
	}
	m.statusSyncUpdates.Add(float64(n))
}
