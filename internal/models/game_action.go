// internal/models/game_action.go
package models

// ActionRecord is one accepted lobby action, shipped to the action log queue
// for offline analysis and replay.
type ActionRecord struct {
	LobbyID       string                 `json:"lobby_id"`
	RoundID       string                 `json:"round_id,omitempty"`
	ActionIndex   int                    `json:"action_index"`
	ActorPlayerID string                 `json:"actor_player_id,omitempty"`
	ActionType    string                 `json:"action_type"`
	ActionPayload map[string]interface{} `json:"action_payload,omitempty"`
	Timestamp     int64                  `json:"timestamp"`
}
