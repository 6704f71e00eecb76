// Package rediskey centralizes the naming of every Redis key used by the
// service. All keys are versioned under the "v3" prefix; changing a format
// here invalidates the corresponding cached state.
package rediskey

import (
	"fmt"

	"github.com/obstaclehub/records-api/internal/model"
)

const keyPrefix = "v3"

// MapLeaderboard returns the sorted-set key of the leaderboard for a map,
// under the given event overlay.
//
// No overlay:         v3:lb:{map_id}
// Overlay (ev, ed):   v3:event:{event_handle}:{edition_id}:lb:{map_id}
func MapLeaderboard(mapID model.MapID, event model.OptEvent) string {
	if event.IsSet() {
		return fmt.Sprintf("%s:event:%s:%d:lb:%d", keyPrefix, event.Event.Handle, event.Edition.ID, mapID)
	}
	return fmt.Sprintf("%s:lb:%d", keyPrefix, mapID)
}

// MPToken returns the key holding the hash of a player's gamemode token.
func MPToken(login string) string {
	return fmt.Sprintf("%s:token:mp:%s", keyPrefix, login)
}

// WebToken returns the key holding the hash of a player's website token.
func WebToken(login string) string {
	return fmt.Sprintf("%s:token:web:%s", keyPrefix, login)
}
