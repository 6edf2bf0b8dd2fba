package models

// LoginRequest is the body of POST /api/v1/auth/login.
// The identifier may be an email, a username or a staff/student code.
type LoginRequest struct {
	LoginIdentifier string `json:"loginIdentifier" validate:"required,notblank"`
	Password        string `json:"password" validate:"required"`
}

// LoginResponse is the payload returned by a successful login.
type LoginResponse struct {
	Message string `json:"message"`
	User    *User  `json:"user"`
}

// MessageResponse is the generic acknowledgement returned by logout, status and change-password.
type MessageResponse struct {
	Message string `json:"message"`
}

// RegisterRequest is the body of POST /api/v1/auth/register.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,notblank,min=3,max=50"`
	UserCode string `json:"userCode" validate:"required,notblank"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	RealName string `json:"realName" validate:"required,notblank"`
	Role     string `json:"role,omitempty" validate:"omitempty,role"`
	Phone    string `json:"phone,omitempty" validate:"omitempty,mobile"`
	ClassID  *int64 `json:"classId,omitempty"`
}

// PasswordChangeRequest is the body of POST /api/v1/auth/change-password.
type PasswordChangeRequest struct {
	OldPassword     string `json:"oldPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=NewPassword"`
}
