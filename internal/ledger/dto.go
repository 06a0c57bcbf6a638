// AngelaMos | 2026
// dto.go

package ledger

import (
	"time"
)

type SetBirthdayRequest struct {
	Month int `json:"month" validate:"required,min=1,max=12"`
	Day   int `json:"day"   validate:"required,min=1,max=31"`
}

type GiveRequest struct {
	Amount int64 `json:"amount" validate:"required,gt=0,max=1000000"`
}

type ResultResponse struct {
	Applied   bool  `json:"applied"`
	Balance   int64 `json:"balance"`
	Amount    int64 `json:"amount"`
	Remaining int   `json:"remaining,omitempty"`
}

type GiveAllResponse struct {
	Amount int64 `json:"amount"`
	Users  int   `json:"users"`
}

type EntryResponse struct {
	ID           int64     `json:"id"`
	Amount       int64     `json:"amount"`
	Reason       string    `json:"reason"`
	BalanceAfter int64     `json:"balance_after"`
	CreatedAt    time.Time `json:"created_at"`
}

func ToResultResponse(r Result) ResultResponse {
	return ResultResponse{
		Applied:   r.Applied,
		Balance:   r.Balance,
		Amount:    r.Amount,
		Remaining: r.Remaining,
	}
}

func ToEntryResponseList(entries []Entry) []EntryResponse {
	out := make([]EntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, EntryResponse{
			ID:           e.ID,
			Amount:       e.Amount,
			Reason:       e.Reason,
			BalanceAfter: e.BalanceAfter,
			CreatedAt:    e.CreatedAt,
		})
	}
	return out
}
