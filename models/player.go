// models/player.go
package models

// Player is a partition key, nothing more: a stable id derived from the
// authenticated identity (hash of the verified email claim).
type Player struct {
	ID string `json:"id"`
}
