// Package session provides session management for the tile game server.
//
// The session package implements:
//   - Thread-safe session storage with case-insensitive lookup
//   - UUID session identifiers
//   - JSON file persistence of the actor, history and encoded map
//   - Session cleanup and expiration
//
// Core Types:
//
// Manager stores the active sessions and builds each session's engine through
// an EngineFactory. FilePersistence writes one JSON document per session; on
// load the scenario is fetched again as the reset baseline, then the saved map
// and actor are applied on top, relocating the actor if needed.
//
// Usage:
//
//	persistence, err := session.NewFilePersistence("sessions", scenarios, nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	manager := session.NewManagerWithPersistence(persistence)
//
//	sess, err := manager.Create("", scenarios.GetDefault())
package session
