package model

// AdminLoginRequest is the payload for the administrator login.
type AdminLoginRequest struct {
	Password string `json:"password" binding:"required,min=4,max=128"`
}

// AdminLoginResponse is returned after successful admin login.
type AdminLoginResponse struct {
	Token string `json:"token"`
}
