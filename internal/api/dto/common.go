package dto

// SuccessResponse represents a generic success response
type SuccessResponse struct {
	Message string `json:"message"`
}

// AdminResponse wraps the outcome of a privileged mutation
type AdminResponse[T any] struct {
	Result       T    `json:"result"`
	AuditWritten bool `json:"audit_written"`
}

// NewAdminResponse creates an admin response
func NewAdminResponse[T any](result T, auditWritten bool) *AdminResponse[T] {
	return &AdminResponse[T]{Result: result, AuditWritten: auditWritten}
}
