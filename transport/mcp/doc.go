// Package mcp exposes the tile game to AI agents over the Model Context Protocol.
//
// The Client is a thin proxy: every tool handler calls the REST API and turns
// the JSON reply into readable text. API failures come back as tool errors
// carrying the stable error code, for example "(map_size_mismatch)".
//
// Tools:
//   - create_session, get_session, list_sessions
//   - game_state, move, bulk_move, reset_game, move_history
//   - list_scenarios, export_map, save_scenario
//   - describe_cell, game_instructions
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//
//	// Stdio mode
//	server.ServeStdio(client.GetMCPServer())
//
//	// HTTP mode, one JSON-RPC message per request
//	response := client.GetMCPServer().HandleMessage(ctx, body)
package mcp
