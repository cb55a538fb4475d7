// internal/workers/ai-conversation/gather-user-signals/models.go
package gatherusersignals

import "shopping-assistant/internal/models"

type Input struct {
	UserID string `json:"userId"`
}

type Output struct {
	UserData models.UserIntelligence `json:"userData"`
	Cached   bool                    `json:"cached"`
}
