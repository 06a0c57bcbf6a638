// AngelaMos | 2026
// dto.go

package user

import (
	"time"
)

type UserResponse struct {
	ID                   string     `json:"id"`
	UUID                 string     `json:"uuid"`
	Username             string     `json:"username"`
	AvatarURL            string     `json:"avatar_url"`
	IsAdmin              bool       `json:"is_admin"`
	Balance              int64      `json:"balance"`
	PointsEarned         int64      `json:"points_earned"`
	MessageCount         int        `json:"message_count"`
	ReactionCount        int        `json:"reaction_count"`
	VoiceMinutes         int        `json:"voice_minutes"`
	DailyClaimsCount     int        `json:"daily_claims_count"`
	CampusPhotosCount    int        `json:"campus_photos_count"`
	DailyEngagementCount int        `json:"daily_engagement_count"`
	LastDaily            *time.Time `json:"last_daily,omitempty"`
	Birthday             *Birthday  `json:"birthday,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}

type Birthday struct {
	Month int `json:"month"`
	Day   int `json:"day"`
}

type AdminLeaderboardResponse struct {
	UserID           string `json:"user_id"`
	Username         string `json:"username"`
	IsAdmin          bool   `json:"is_admin"`
	Balance          int64  `json:"balance"`
	PointsEarned     int64  `json:"points_earned"`
	TotalSpent       int64  `json:"total_spent"`
	PurchaseCount    int    `json:"purchase_count"`
	AchievementCount int    `json:"achievement_count"`
	ActivityScore    int64  `json:"activity_score"`
}

type ListUsersParams struct {
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	Search   string `json:"search"`
	Sort     string `json:"sort"`
}

func (p *ListUsersParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
	switch p.Sort {
	case SortBalance, SortEarned, SortSpent, SortRecent:
	default:
		p.Sort = SortBalance
	}
}

func (p *ListUsersParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func ToUserResponse(u *User) UserResponse {
	resp := UserResponse{
		ID:                   u.ID,
		UUID:                 u.UUID.String(),
		Username:             u.DisplayName(),
		AvatarURL:            u.AvatarURL,
		IsAdmin:              u.IsAdmin,
		Balance:              u.Balance,
		PointsEarned:         u.PointsEarned,
		MessageCount:         u.MessageCount,
		ReactionCount:        u.ReactionCount,
		VoiceMinutes:         u.VoiceMinutes,
		DailyClaimsCount:     u.DailyClaimsCount,
		CampusPhotosCount:    u.CampusPhotosCount,
		DailyEngagementCount: u.DailyEngagementCount,
		LastDaily:            u.LastDaily,
		CreatedAt:            u.CreatedAt,
	}
	if u.HasBirthday() {
		resp.Birthday = &Birthday{Month: *u.BirthdayMonth, Day: *u.BirthdayDay}
	}
	return resp
}

func ToUserResponseList(users []User) []UserResponse {
	responses := make([]UserResponse, 0, len(users))
	for _, u := range users {
		responses = append(responses, ToUserResponse(&u))
	}
	return responses
}

func ToAdminLeaderboardResponse(entries []AdminLeaderboardEntry) []AdminLeaderboardResponse {
	out := make([]AdminLeaderboardResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, AdminLeaderboardResponse{
			UserID:           e.UserID,
			Username:         e.Username,
			IsAdmin:          e.IsAdmin,
			Balance:          e.Balance,
			PointsEarned:     e.PointsEarned,
			TotalSpent:       e.TotalSpent,
			PurchaseCount:    e.PurchaseCount,
			AchievementCount: e.AchievementCount,
			ActivityScore:    e.ActivityScore(),
		})
	}
	return out
}
