package collab

import (
	"encoding/json"
	"log/slog"
	"maps"
	"sync"
)

type PresenceManager struct {
	mu        sync.RWMutex
	presences map[string]*PresencePayload // playerID -> presence
}

func NewPresenceManager() *PresenceManager {
	return &PresenceManager{
		presences: make(map[string]*PresencePayload),
	}
}

// Update stores the presence of a player, keeping the known display name
// when the update carries none.
func (pm *PresenceManager) Update(playerID string, p *PresencePayload) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if prev, ok := pm.presences[playerID]; ok && p.DisplayName == "" {
		p.DisplayName = prev.DisplayName
	}
	pm.presences[playerID] = p
}

func (pm *PresenceManager) Remove(playerID string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	delete(pm.presences, playerID)
}

func (pm *PresenceManager) GetAll() map[string]*PresencePayload {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return maps.Clone(pm.presences)
}

func (pm *PresenceManager) Len() int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return len(pm.presences)
}

// StateMessage returns the presence of every player, or nil when the room
// is empty.
func (pm *PresenceManager) StateMessage() *Message {
	all := pm.GetAll()
	if len(all) == 0 {
		return nil
	}
	payload, err := json.Marshal(PresenceStatePayload{Presences: all})
	if err != nil {
		slog.Error("marshal presence state", "error", err)
		return nil
	}
	return &Message{
		Type:    TypePresenceState,
		Payload: payload,
	}
}
