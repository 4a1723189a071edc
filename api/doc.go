// Package api provides the HTTP REST API for the tile game.
//
// Endpoints:
//
// Sessions:
//   - POST   /api/sessions                 {"scenario_id": "maze"}
//   - GET    /api/sessions                 ?sort=created|accessed&order=asc|desc&limit=N
//   - GET    /api/sessions/unified         ?sessionIds=a,b or ?scenario=maze
//   - GET    /api/sessions/{id}
//   - DELETE /api/sessions/{id}
//
// Game operations:
//   - GET    /api/sessions/{id}/state
//   - POST   /api/sessions/{id}/move       {"direction": "up-left", "reset": false}
//   - POST   /api/sessions/{id}/bulk-move  {"moves": ["up", "right"], "reset": false}
//   - POST   /api/sessions/{id}/keys       {"key": "left", "pressed": true}
//   - DELETE /api/sessions/{id}/keys
//   - POST   /api/sessions/{id}/tick
//   - POST   /api/sessions/{id}/reset
//   - GET    /api/sessions/{id}/history    ?page=1&limit=20&order=desc
//   - GET    /api/sessions/{id}/map        text/plain RLE document
//
// Scenarios:
//   - GET    /api/scenarios
//   - GET    /api/scenarios/{name}
//   - PUT    /api/scenarios/{name}         body is the RLE document
//
// WebSocket:
//   - GET    /ws?session={id}
//
// Errors are JSON with a stable code next to the message:
//
//	{"error": "invalid scenario: broken: map size mismatch: ...", "code": "map_size_mismatch"}
//
// Unknown sessions and scenarios are 404; decode failures, bad names, bad
// directions and bad keys are 400.
package api
