package role

import "github.com/fkhayef/tourneyhub/internal/permission"

// CreateRoleRequest represents the request to create a role
type CreateRoleRequest struct {
	Name        string         `json:"name"`
	Color       string         `json:"color,omitempty"`
	Permissions permission.Set `json:"permissions"`
	// Position defaults to above every existing role
	Position    *int `json:"position,omitempty"`
	Mentionable bool `json:"mentionable"`
}

// UpdateRoleRequest represents a partial role update
type UpdateRoleRequest struct {
	Name        *string         `json:"name,omitempty"`
	Color       *string         `json:"color,omitempty"`
	Permissions *permission.Set `json:"permissions,omitempty"`
	Position    *int            `json:"position,omitempty"`
	Mentionable *bool           `json:"mentionable,omitempty"`
}

// SetPermissionsRequest replaces a role's permissions
type SetPermissionsRequest struct {
	Permissions permission.Set `json:"permissions"`
}

// AssignRequest names the user a role is given to or taken from
type AssignRequest struct {
	UserID string `json:"user_id"`
}

// RoleResponse represents the response for a role
type RoleResponse struct {
	ID            string   `json:"id"`
	CommunityID   string   `json:"community_id"`
	Name          string   `json:"name"`
	Color         string   `json:"color,omitempty"`
	Permissions   []string `json:"permissions"`
	Position      int      `json:"position"`
	Mentionable   bool     `json:"mentionable"`
	IsDefault     bool     `json:"is_default"`
	AssignedUsers []string `json:"assigned_users"`
	UpdatedAt     string   `json:"updated_at"`
}

// ToResponse converts a Role model to a RoleResponse DTO
func (r *Role) ToResponse() *RoleResponse {
	return &RoleResponse{
		ID:            r.ID,
		CommunityID:   r.CommunityID,
		Name:          r.Name,
		Color:         r.Color,
		Permissions:   r.Permissions.Strings(),
		Position:      r.Position,
		Mentionable:   r.Mentionable,
		IsDefault:     r.IsDefault,
		AssignedUsers: r.AssignedUsers.Slice(),
		UpdatedAt:     r.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}
