// Package websocket pushes game state to browsers and accepts held-key input.
//
// A central Hub owns every connection, grouped by session ID. Each client gets
// a read pump and a write pump goroutine; the hub's Run loop handles
// registration and fan-out.
//
// Outgoing messages are JSON documents, one per frame:
//
//	{"session_id":"...","event":"state_update","game_state":{...}}
//	{"session_id":"...","event":"error","data":"unknown key \"jump\""}
//
// Incoming messages change held keys when the hub was built WithInput:
//
//	{"type":"key_down","key":"left"}
//	{"type":"key_up","key":"left"}
//	{"type":"clear"}
//
// Usage:
//
//	hub := websocket.NewHub(websocket.WithInput(gameService))
//	go hub.Run(ctx)
//	router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("session"))
//	})
package websocket
