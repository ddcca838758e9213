package model

type CreateSessionRequest struct {
	Title string `json:"title"`
}

type UpdateTitleRequest struct {
	Title string `json:"title" binding:"required"`
}

// ContractRequest starts a draft. An empty SessionID opens a new session.
type ContractRequest struct {
	SessionID   string `json:"session_id"`
	Description string `json:"description" binding:"required"`
}

// ParamsRequest carries one value per outstanding placeholder. Empty values
// leave the placeholder unresolved.
type ParamsRequest struct {
	SessionID string            `json:"session_id" binding:"required"`
	Values    map[string]string `json:"values"`
}
