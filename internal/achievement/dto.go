// AngelaMos | 2026
// dto.go

package achievement

import (
	"time"
)

type CreateRequest struct {
	Name        string `json:"name"        validate:"required,min=2,max=100"`
	Description string `json:"description" validate:"max=500"`
	Points      int64  `json:"points"      validate:"gte=0,lte=100000"`
	Type        Type   `json:"type"        validate:"required,oneof=message reaction voice special"`
	Requirement int    `json:"requirement" validate:"required,gt=0"`
}

type AchievementResponse struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Points      int64      `json:"points"`
	Type        Type       `json:"type"`
	Requirement int        `json:"requirement"`
	AwardedAt   *time.Time `json:"awarded_at,omitempty"`
}

func ToAchievementResponse(a Achievement) AchievementResponse {
	return AchievementResponse{
		ID:          a.ID,
		Name:        a.Name,
		Description: a.Description,
		Points:      a.Points,
		Type:        a.Type,
		Requirement: a.Requirement,
	}
}

func ToAchievementResponseList(list []Achievement) []AchievementResponse {
	out := make([]AchievementResponse, len(list))
	for i, a := range list {
		out[i] = ToAchievementResponse(a)
	}
	return out
}

func ToHeldResponseList(list []Held) []AchievementResponse {
	out := make([]AchievementResponse, len(list))
	for i, h := range list {
		r := ToAchievementResponse(h.Achievement)
		awarded := h.AwardedAt
		r.AwardedAt = &awarded
		out[i] = r
	}
	return out
}
