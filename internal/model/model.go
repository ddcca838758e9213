package model

import (
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Template is one entry of the contract corpus. Field names on disk follow the
// corpus file: descrizione, testo, link.
type Template struct {
	ID          string `json:"id" yaml:"id"`
	Description string `json:"descrizione" yaml:"descrizione"`
	Body        string `json:"testo" yaml:"testo"`
	Link        string `json:"link" yaml:"link"`
}

type Message struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Role        string    `json:"role"`
	Content     string    `json:"content"`
	HTMLContent string    `json:"html_content,omitempty"`
	Avatar      string    `json:"avatar,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Document is an exported contract ready to be served.
type Document struct {
	Path     string `json:"path"`
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	Data     []byte `json:"-"`
}
