// Package service provides the business logic layer for the tile game.
//
// The service package implements:
//   - Multi-session game management
//   - Scenario listing, loading and saving
//   - Discrete moves, bulk moves and held-key ticks
//   - Move history pagination
//
// Core Interfaces:
//
// GameService is the main service interface providing high-level game operations.
// SessionManager handles session creation, retrieval, and persistence.
// ScenarioManager loads RLE scenario files and generates a default map when one
// is missing.
//
// Architecture:
//
// The service layer sits between the transport layer (HTTP/WebSocket/MCP) and
// the game engine. Each session owns its own engine instance; the service
// serializes access to them with a single lock and opens one trace span per
// operation.
//
// Usage:
//
//	scenarios, err := scenario.NewManager("scenarios")
//	if err != nil {
//		log.Fatal(err)
//	}
//	sessions := session.NewManager()
//	svc := service.NewGameService(sessions, scenarios)
//
//	info, err := svc.CreateSession(ctx, "maze")
//	if err != nil {
//		log.Fatal(err)
//	}
//	result, err := svc.Move(ctx, info.ID, "up-left", false)
//
// Held keys are advanced by RunTicker, which calls TickAll at a fixed interval.
package service
