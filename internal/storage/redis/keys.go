package redis

import (
	"fmt"

	"github.com/mcoot/estimategame/internal/model"
)

// Key prefix for all game-related data
const keyPrefix = "estgame"

// sessionKey returns the Redis key for a Session document
func sessionKey(id model.SessionID) string {
	return fmt.Sprintf("%s:session:%s", keyPrefix, id)
}

// codeIndexKey returns the Redis key for the code -> session_id index
func codeIndexKey(code model.SessionCode) string {
	return fmt.Sprintf("%s:idx:code:%s", keyPrefix, code)
}

// credentialKey returns the Redis key for a player's token credential
func credentialKey(playerID model.PlayerID) string {
	return fmt.Sprintf("%s:credential:%s", keyPrefix, playerID)
}
