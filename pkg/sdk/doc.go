// Package sdk is the entry point of the document store.
//
// # Overview
//
// NewSDK builds one Core per process. Core owns:
//   - the connection manager, linked to a remote Kubo node or, when that node
//     does not answer, to an embedded node (in memory or in a Badger repo)
//   - the document store, which writes every record version to that backend
//     and pins it
//   - the gateway resolver, which reads through the store before trying
//     public gateways
//
// A background loop checks the backend's health every
// Timeouts.HealthInterval and reconnects after failures.
//
// # Quick Start
//
//	cfg := &config.Config{IpfsURL: "http://127.0.0.1:5001"}
//	core, err := sdk.NewSDK(ctx, cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer core.Close()
//
//	org, err := core.Store().Create(ctx, "orgs", map[string]any{"name": "Acme"})
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(org.ID, org.CID)
//
//	content, err := core.Resolver().FetchContent(ctx, "ipfs://"+org.CID, gateway.FetchOptions{})
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(content.JSON)
//
// # Errors
//
// Writes fail with *connection.ConnectionError when no backend is connected
// and with *retry.OperationError when adding or pinning keeps failing.
// FetchContent fails with *gateway.FetchExhaustedError when neither the local
// store nor any gateway has the content. Missing records are reported as nil,
// never as errors.
//
// # Logging
//
// The package installs a console zap logger as the global logger at Info
// level. Config.Debug lowers it to Debug; SetLogLevel changes it at runtime.
// Applications may replace it with zap.ReplaceGlobals.
//
// # Index Lifetime
//
// Record indices live in memory and are lost on exit. Store().Checkpoint
// writes a manifest CID that Store().Restore accepts in a later process.
package sdk
