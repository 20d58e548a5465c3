package dto

// UserListQuery captures user listing parameters.
type UserListQuery struct {
	Page   int    `form:"page"`
	Search string `form:"search"`
}

// ChangeRoleRequest reassigns a user's role by role id.
type ChangeRoleRequest struct {
	RoleID string `json:"roleId" validate:"required"`
}

// CreateRoleRequest creates or renames a role.
type CreateRoleRequest struct {
	Name string `json:"name" validate:"required"`
}

// CreateCategoryRequest creates or updates a category. Parent is optional;
// names are unique per parent.
type CreateCategoryRequest struct {
	Name   string  `json:"name" validate:"required"`
	Parent *string `json:"parent"`
}
