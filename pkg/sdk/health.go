package sdk

import (
	"context"
)

// HealthReport describes the storage connection and the stored data as seen
// by one Health call.
type HealthReport struct {
	Healthy bool   `json:"healthy"`
	State   string `json:"state"`
	Source  string `json:"source"`
	// Version is the backend's answer to the liveness probe.
	Version     string         `json:"version,omitempty"`
	Error       string         `json:"error,omitempty"`
	Collections map[string]int `json:"collections"`
	// Gateways is the advisory ranking, most recently successful first.
	Gateways []string `json:"gateways"`
}

// Health probes the active backend within Timeouts.HealthCheck. A failed
// probe marks the connection disconnected; the background loop reconnects.
func (c *Core) Health(ctx context.Context) HealthReport {
	ctx, cancel := context.WithTimeout(ctx, c.Timeouts.HealthCheck)
	defer cancel()

	report := HealthReport{
		Healthy:     c.conn.HealthCheck(ctx),
		Collections: make(map[string]int),
		Gateways:    c.resolver.RankGateways(),
	}
	if report.Healthy {
		if v, err := c.conn.Version(ctx); err != nil {
			report.Error = err.Error()
		} else {
			report.Version = v
		}
	} else {
		report.Error = "storage backend not reachable"
	}
	report.State = c.conn.State().String()
	report.Source = string(c.conn.Source())

	for _, name := range c.store.Collections() {
		report.Collections[name] = c.store.Count(name)
	}
	return report
}
