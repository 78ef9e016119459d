package dto

import "github.com/noah-isme/edu-resource-api/internal/models"

// CreateSchoolUserRequest is submitted by an admin to open a school account.
type CreateSchoolUserRequest struct {
	Name         string `json:"name" validate:"required,max=100"`
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=6"`
	Organization string `json:"organization" validate:"required,max=255"`
	Designation  string `json:"designation" validate:"max=100"`
}

// UpdateUserStatusRequest changes an account status.
type UpdateUserStatusRequest struct {
	Status models.UserStatus `json:"status" validate:"required,oneof=active inactive banned"`
}

// ListUsersQuery captures user list query parameters.
type ListUsersQuery struct {
	Role   string `form:"role"`
	Status string `form:"status"`
	Search string `form:"search"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}
