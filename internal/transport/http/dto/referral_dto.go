package dto

type SetReferrerRequest struct {
	InviteCode string `json:"invite_code"`
}

type ReferrerResponse struct {
	HasReferrer bool    `json:"has_referrer"`
	InviteCode  *string `json:"invite_code"`
	Phone       *string `json:"phone"`
}
