package server

import (
	"sync/atomic"
)

// RelayMetrics counts what the relay did since start (for /metrics and debugging).
type RelayMetrics struct {
	Connections      int64 // connections accepted
	EventsReceived   int64 // frames decoded into a known event
	EventsIgnored    int64 // unknown events, bad frames, or events from unbound connections
	Initializations  int64 // fresh records created
	Reattachments    int64 // initialize calls answered with an existing record
	GatewayLoads     int64 // LoadPlayer calls
	GatewayFailures  int64 // gateway calls that returned an unexpected error
	Respawns         int64 // respawn directives sent
	Relayed          int64 // frames fanned out to room peers
	SendQueueDropped int64 // frames dropped because a send queue was full
}

func (m *RelayMetrics) IncConnections() { atomic.AddInt64(&m.Connections, 1) }
func (m *RelayMetrics) IncReceived() { atomic.AddInt64(&m.EventsReceived, 1) }
func (m *RelayMetrics) IncIgnored() { atomic.AddInt64(&m.EventsIgnored, 1) }
func (m *RelayMetrics) IncInitializations() { atomic.AddInt64(&m.Initializations, 1) }
func (m *RelayMetrics) IncReattachments() { atomic.AddInt64(&m.Reattachments, 1) }
func (m *RelayMetrics) IncGatewayLoads() { atomic.AddInt64(&m.GatewayLoads, 1) }
func (m *RelayMetrics) IncGatewayFailures() { atomic.AddInt64(&m.GatewayFailures, 1) }
func (m *RelayMetrics) IncRespawns() { atomic.AddInt64(&m.Respawns, 1) }
func (m *RelayMetrics) AddRelayed(n int) { atomic.AddInt64(&m.Relayed, int64(n)) }
func (m *RelayMetrics) IncQueueDropped() { atomic.AddInt64(&m.SendQueueDropped, 1) }

// Snapshot returns a read-only copy suitable for JSON output.
func (m *RelayMetrics) Snapshot() map[string]any {
	return map[string]any{
		"connections":        atomic.LoadInt64(&m.Connections),
		"events_received":    atomic.LoadInt64(&m.EventsReceived),
		"events_ignored":     atomic.LoadInt64(&m.EventsIgnored),
		"initializations":    atomic.LoadInt64(&m.Initializations),
		"reattachments":      atomic.LoadInt64(&m.Reattachments),
		"gateway_loads":      atomic.LoadInt64(&m.GatewayLoads),
		"gateway_failures":   atomic.LoadInt64(&m.GatewayFailures),
		"respawns":           atomic.LoadInt64(&m.Respawns),
		"relayed":            atomic.LoadInt64(&m.Relayed),
		"send_queue_dropped": atomic.LoadInt64(&m.SendQueueDropped),
	}
}
