package engine

import (
	"fmt"
	"strings"
	"sync"

	"github.com/zyedidia/generic/mapset"
)

// Key is a direction input the player can hold down
type Key uint8

const (
	KeyUp Key = iota + 1
	KeyDown
	KeyLeft
	KeyRight
)

func (k Key) String() string {
	switch k {
	case KeyUp:
		return "up"
	case KeyDown:
		return "down"
	case KeyLeft:
		return "left"
	case KeyRight:
		return "right"
	}
	return fmt.Sprintf("key(%d)", uint8(k))
}

// ParseKey accepts direction names, arrow names and WASD letters
func ParseKey(s string) (Key, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up", "arrowup", "w":
		return KeyUp, nil
	case "down", "arrowdown", "s":
		return KeyDown, nil
	case "left", "arrowleft", "a":
		return KeyLeft, nil
	case "right", "arrowright", "d":
		return KeyRight, nil
	}
	return 0, fmt.Errorf("unknown key %q", s)
}

// KeySnapshot is the set of held keys as seen by one tick
type KeySnapshot struct {
	Up    bool `json:"up"`
	Down  bool `json:"down"`
	Left  bool `json:"left"`
	Right bool `json:"right"`
}

// SnapshotOf builds a snapshot holding exactly the given keys
func SnapshotOf(keys ...Key) KeySnapshot {
	var s KeySnapshot
	for _, k := range keys {
		switch k {
		case KeyUp:
			s.Up = true
		case KeyDown:
			s.Down = true
		case KeyLeft:
			s.Left = true
		case KeyRight:
			s.Right = true
		}
	}
	return s
}

// Empty reports whether no key is held
func (s KeySnapshot) Empty() bool {
	return !s.Up && !s.Down && !s.Left && !s.Right
}

// KeyState is the set of currently held keys. Input handlers call Press and
// Release from their own goroutines; the tick loop reads it once per tick with
// Snapshot.
type KeyState struct {
	mu   sync.Mutex
	held mapset.Set[Key]
}

// NewKeyState returns an empty key set
func NewKeyState() *KeyState {
	return &KeyState{held: mapset.New[Key]()}
}

// Press marks k as held
func (ks *KeyState) Press(k Key) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.held.Put(k)
}

// Release marks k as no longer held
func (ks *KeyState) Release(k Key) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.held.Remove(k)
}

// Clear releases every key, e.g. when the client loses focus
func (ks *KeyState) Clear() {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.held = mapset.New[Key]()
}

// Len returns how many keys are held
func (ks *KeyState) Len() int {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	return ks.held.Size()
}

// Snapshot copies the held keys under the lock
func (ks *KeyState) Snapshot() KeySnapshot {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	return KeySnapshot{
		Up:    ks.held.Has(KeyUp),
		Down:  ks.held.Has(KeyDown),
		Left:  ks.held.Has(KeyLeft),
		Right: ks.held.Has(KeyRight),
	}
}
