package relay

import (
	"sync/atomic"
)

// ConnectionMetrics contains atomic metrics for a managed link.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type ConnectionMetrics struct {
	// MsgSendCount indicates the number of frames sent.
	MsgSendCount atomic.Uint64
	// MsgRecvCount indicates the number of frames received.
	MsgRecvCount atomic.Uint64
	// SendErrCount indicates the number of send failures.
	SendErrCount atomic.Uint64
	// RecvErrCount indicates the number of receive or decode failures.
	RecvErrCount atomic.Uint64

	// HealthCheckCount indicates the number of liveness probes run.
	HealthCheckCount atomic.Uint64
	// HealthCheckFailCount indicates the number of probes that found a dead peer.
	HealthCheckFailCount atomic.Uint64

	// ConnRetryGauge indicates the number of reconnect attempts since the last
	// successful connect.
	ConnRetryGauge atomic.Uint32
}

func (m *ConnectionMetrics) incMsgSendCount() {
	m.MsgSendCount.Add(1)
}

func (m *ConnectionMetrics) incMsgRecvCount() {
	m.MsgRecvCount.Add(1)
}

func (m *ConnectionMetrics) incSendErrCount() {
	m.SendErrCount.Add(1)
}

func (m *ConnectionMetrics) incRecvErrCount() {
	m.RecvErrCount.Add(1)
}

func (m *ConnectionMetrics) incHealthCheckCount() {
	m.HealthCheckCount.Add(1)
}

func (m *ConnectionMetrics) incHealthCheckFailCount() {
	m.HealthCheckFailCount.Add(1)
}

func (m *ConnectionMetrics) incConnRetryGauge() {
	m.ConnRetryGauge.Add(1)
}

func (m *ConnectionMetrics) resetConnRetryGauge() {
	m.ConnRetryGauge.Store(0)
}
