package dto

type ProfileResponse struct {
	Phone              string   `json:"phone"`
	InviteCode         string   `json:"invite_code"`
	Email              *string  `json:"email,omitempty"`
	Country            *string  `json:"country,omitempty"`
	Referrals          []string `json:"referrals"`
	ReferrerPhone      *string  `json:"referrer_phone"`
	ReferrerInviteCode *string  `json:"referrer_invite_code"`
}
