package directory

// Service names registered by the directory module.
const (
	ServiceGetUser          = "get-user"
	ServiceListUserProjects = "list-user-projects"
)

// GetUserRequest is the request for get-user.
type GetUserRequest struct {
	UserID string `json:"user_id"`
}

// GetUserResponse is the response for get-user.
// Found is false when the user does not exist.
type GetUserResponse struct {
	Found  bool   `json:"found"`
	ID     string `json:"id,omitempty"`
	Role   string `json:"role,omitempty"`
	Active bool   `json:"active"`
}

// ListUserProjectsRequest is the request for list-user-projects.
type ListUserProjectsRequest struct {
	UserID string `json:"user_id"`
}

// ListUserProjectsResponse is the response for list-user-projects.
type ListUserProjectsResponse struct {
	ProjectIDs []string `json:"project_ids"`
}
