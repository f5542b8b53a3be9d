package auth

// Known OAuth scopes used by the service.
const (
	ScopeSessionsRead   = "sessions:read"
	ScopeSessionsWrite  = "sessions:write"
	ScopeTemplatesWrite = "templates:write"
)
