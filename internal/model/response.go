package model

import "time"

type TemplateResponse struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Link        string `json:"link"`
}

type SessionResponse struct {
	SessionID    string            `json:"session_id"`
	Title        string            `json:"title"`
	Phase        PhaseName         `json:"phase"`
	Draft        string            `json:"draft,omitempty"`
	Outstanding  []string          `json:"outstanding"`
	Params       map[string]string `json:"params"`
	Template     *TemplateResponse `json:"template,omitempty"`
	ExportError  string            `json:"export_error,omitempty"`
	MessageCount int               `json:"message_count"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// TurnResponse is returned by every conversational turn: the session after the
// turn and the messages the turn appended.
type TurnResponse struct {
	Session  SessionResponse `json:"session"`
	Messages []Message       `json:"messages"`
	Warnings []string        `json:"warnings,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// ProgressEvent reports a pipeline stage while a request is being processed.
type ProgressEvent struct {
	Stage     string                 `json:"stage"`
	Message   string                 `json:"message"`
	Timestamp int64                  `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

func NewTemplateResponse(t *Template) *TemplateResponse {
	if t == nil {
		return nil
	}
	return &TemplateResponse{
		ID:          t.ID,
		Description: t.Description,
		Link:        t.Link,
	}
}

func NewSessionResponse(s *Session) SessionResponse {
	resp := SessionResponse{
		SessionID:    s.ID,
		Title:        s.Title,
		Phase:        s.PhaseName(),
		Draft:        s.Draft(),
		Outstanding:  s.Outstanding(),
		Params:       s.Params,
		Template:     NewTemplateResponse(s.Template()),
		MessageCount: len(s.Messages),
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
	if p, ok := s.Phase.(FinalPhase); ok {
		resp.ExportError = p.ExportError
	}
	if resp.Params == nil {
		resp.Params = map[string]string{}
	}
	return resp
}
