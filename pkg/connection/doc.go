// Package connection owns the single active link between the document store
// and a content-addressed backend.
//
// A Manager first dials the configured primary endpoint (a remote Kubo node).
// If that endpoint does not answer a version probe, it starts the embedded
// node instead. Only when both fail does Connect return a *ConnectionError.
//
//	m := connection.NewManager(connection.Options{
//		Primary: func(ctx context.Context) (storage.Backend, error) {
//			return storage.NewIPFSNode("http://127.0.0.1:5001", 30*time.Second)
//		},
//		Embedded: func(ctx context.Context) (storage.Backend, error) {
//			return storage.NewMemoryNode(), nil
//		},
//	})
//	if err := m.Connect(ctx); err != nil {
//		return err
//	}
//	m.Start(ctx) // periodic health check and reconnect
//	defer m.Close()
//
// # States
//
//	Disconnected -> Connecting -> Connected -> (healthy: Connected | unhealthy: Disconnected)
//
// The background loop started by Start wakes every Options.HealthInterval. A
// disconnected manager tries Connect again; a connected one runs HealthCheck
// and reconnects when the probe fails. Failures are logged and retried on the
// next tick; they never reach callers.
//
// Add, Pin, Cat and Version delegate to whichever backend is active and fail
// with a *ConnectionError wrapping ErrNotConnected while there is none.
package connection
