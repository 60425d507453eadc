package dto

type GetCodeRequest struct {
	Phone string `json:"phone"`
}

type GetCodeResponse struct {
	Created bool   `json:"created"`
	Message string `json:"message"`
}

type SendCodeRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type AuthMeResponse struct {
	ID    int64  `json:"id"`
	Phone string `json:"phone"`
	Role  string `json:"role"`
}

type AuthTokensResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	ExpiresInSec int64          `json:"expires_in_sec"`
	Me           AuthMeResponse `json:"me"`
}

type LogoutResponse struct {
	OK bool `json:"ok"`
}
