package collab

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bodymap/bodymap/internal/geom"
)

func TestPresenceManager(t *testing.T) {
	pm := NewPresenceManager()
	assert.Nil(t, pm.StateMessage(), "empty room")

	pm.Update("alice", &PresencePayload{DisplayName: "Alice"})
	cursor := geom.P(1, 0, 0)
	pm.Update("alice", &PresencePayload{Cursor: &cursor})
	pm.Update("bob", &PresencePayload{DisplayName: "Bob"})

	all := pm.GetAll()
	require.Len(t, all, 2)
	assert.Equal(t, "Alice", all["alice"].DisplayName, "name kept across updates")
	assert.Equal(t, cursor, *all["alice"].Cursor)

	msg := pm.StateMessage()
	require.NotNil(t, msg)
	assert.Equal(t, TypePresenceState, msg.Type)
	var state PresenceStatePayload
	require.NoError(t, json.Unmarshal(msg.Payload, &state))
	assert.Len(t, state.Presences, 2)

	pm.Remove("alice")
	assert.Equal(t, 1, pm.Len())
}
