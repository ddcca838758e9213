package storage

import (
	"contract-assistant/internal/model"
)

// Storage keeps conversation sessions. Implementations return copies, so a
// caller mutating a session must call UpdateSession for the change to stick.
type Storage interface {
	CreateSession(session *model.Session) error
	GetSession(sessionID string) (*model.Session, error)
	UpdateSession(session *model.Session) error
	DeleteSession(sessionID string) error
	ListSessions() ([]*model.Session, error)
	ClearSessions() error

	Init() error
	Close() error
}
