package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arturoeanton/godsplan/internal/domain"
)

// MemoryStore is the database-less stand-in for PostgresStore's user
// directory and link ledger, used when DATABASE_URL is empty.
type MemoryStore struct {
	mu       sync.Mutex
	users    map[string]*domain.User // key: provider + "\x00" + provider_id
	consumed map[string]time.Time
	audit    []domain.AuditLog
	nowF     func() time.Time
}

// maxMemoryAudit bounds the in-memory audit trail; oldest entries go first.
const maxMemoryAudit = 1000

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]*domain.User),
		consumed: make(map[string]time.Time),
		nowF:     time.Now,
	}
}

// UpsertUser implements port.UserDirectory.
func (m *MemoryStore) UpsertUser(_ context.Context, u *domain.User) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := u.Provider + "\x00" + u.ProviderID
	now := m.nowF()
	existing, ok := m.users[key]
	if !ok {
		created := *u
		created.ID = uuid.NewString()
		created.Role = "user"
		created.CreatedAt = now
		created.UpdatedAt = now
		m.users[key] = &created
		out := created
		return &out, nil
	}

	existing.Email = u.Email
	if strings.TrimSpace(u.Name) != "" {
		existing.Name = u.Name
	}
	if u.AvatarURL != "" {
		existing.AvatarURL = u.AvatarURL
	}
	existing.UpdatedAt = now
	out := *existing
	return &out, nil
}

// Consume implements port.LinkLedger. Expired entries are dropped lazily.
func (m *MemoryStore) Consume(_ context.Context, id string, expiresAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.nowF()
	for k, exp := range m.consumed {
		if exp.Before(now) {
			delete(m.consumed, k)
		}
	}
	if _, used := m.consumed[id]; used {
		return false, nil
	}
	m.consumed[id] = expiresAt
	return true, nil
}

// WriteAudit implements middleware.AuditWriter.
func (m *MemoryStore) WriteAudit(userID, action, resource, resourceID, details, ip, userAgent string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.audit = append(m.audit, domain.AuditLog{
		ID:         uuid.NewString(),
		UserID:     userID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Details:    details,
		IP:         ip,
		UserAgent:  userAgent,
		CreatedAt:  m.nowF(),
	})
	if over := len(m.audit) - maxMemoryAudit; over > 0 {
		m.audit = append(m.audit[:0:0], m.audit[over:]...)
	}
	return nil
}

// ListAuditLogs returns the newest entries first, optionally filtered by action.
func (m *MemoryStore) ListAuditLogs(_ context.Context, limit int, action string) ([]domain.AuditLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var logs []domain.AuditLog
	for i := len(m.audit) - 1; i >= 0; i-- {
		if action != "" && m.audit[i].Action != action {
			continue
		}
		logs = append(logs, m.audit[i])
		if limit > 0 && len(logs) == limit {
			break
		}
	}
	return logs, nil
}
