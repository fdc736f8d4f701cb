package request

type CreateUserWithPassword struct {
	Username string `json:"username" binding:"required,min=3,max=100"`
	Password string `json:"password" binding:"required,min=8"`
}

type AuthenticateUser struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}
