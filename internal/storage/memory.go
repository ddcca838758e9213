package storage

import (
	"sort"
	"time"

	"contract-assistant/internal/model"
	"contract-assistant/pkg/logger"

	"github.com/patrickmn/go-cache"
)

// MemoryStorage keeps sessions in a TTL cache. Every write refreshes the
// expiration and the janitor purges idle sessions.
type MemoryStorage struct {
	cache *cache.Cache
}

func NewMemoryStorage(ttl, cleanupInterval time.Duration) *MemoryStorage {
	c := cache.New(ttl, cleanupInterval)
	c.OnEvicted(func(id string, _ interface{}) {
		logger.Debugf("Session %s evicted", id)
	})
	return &MemoryStorage{
		cache: c,
	}
}

func (m *MemoryStorage) Init() error {
	return nil
}

func (m *MemoryStorage) Close() error {
	m.cache.Flush()
	return nil
}

func (m *MemoryStorage) CreateSession(session *model.Session) error {
	if session == nil || session.ID == "" {
		return ErrInvalidData
	}
	if err := m.cache.Add(session.ID, session.Clone(), cache.DefaultExpiration); err != nil {
		return ErrSessionExists
	}
	return nil
}

func (m *MemoryStorage) GetSession(sessionID string) (*model.Session, error) {
	x, found := m.cache.Get(sessionID)
	if !found {
		return nil, ErrSessionNotFound
	}
	return x.(*model.Session).Clone(), nil
}

func (m *MemoryStorage) UpdateSession(session *model.Session) error {
	if session == nil || session.ID == "" {
		return ErrInvalidData
	}
	if err := m.cache.Replace(session.ID, session.Clone(), cache.DefaultExpiration); err != nil {
		return ErrSessionNotFound
	}
	return nil
}

func (m *MemoryStorage) DeleteSession(sessionID string) error {
	if _, found := m.cache.Get(sessionID); !found {
		return ErrSessionNotFound
	}
	m.cache.Delete(sessionID)
	return nil
}

// ListSessions returns live sessions, most recently updated first.
func (m *MemoryStorage) ListSessions() ([]*model.Session, error) {
	items := m.cache.Items()
	sessions := make([]*model.Session, 0, len(items))
	for _, item := range items {
		sessions = append(sessions, item.Object.(*model.Session).Clone())
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}

func (m *MemoryStorage) ClearSessions() error {
	m.cache.Flush()
	return nil
}
