package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/task-service/internal/domain"
)

// MemoryUserRepository is an in-memory UserRepository for tests and local runs.
type MemoryUserRepository struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]domain.User
}

// NewMemoryUserRepository creates an empty store.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{byID: make(map[int64]domain.User)}
}

func (r *MemoryUserRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.byID {
		if existing.Email == user.Email {
			return ErrDuplicate
		}
	}
	r.nextID++
	now := time.Now().UTC()
	user.ID = r.nextID
	user.CreatedAt = now
	user.UpdatedAt = now
	r.byID[user.ID] = *user
	return nil
}

func (r *MemoryUserRepository) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[user.ID]; !ok {
		return ErrNotFound
	}
	user.UpdatedAt = time.Now().UTC()
	r.byID[user.ID] = *user
	return nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id int64) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.byID {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

// MemoryTaskRepository is an in-memory TaskRepository for tests and local runs.
type MemoryTaskRepository struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]domain.Task
}

// NewMemoryTaskRepository creates an empty store.
func NewMemoryTaskRepository() *MemoryTaskRepository {
	return &MemoryTaskRepository{byID: make(map[int64]domain.Task)}
}

func (r *MemoryTaskRepository) Create(_ context.Context, task *domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	now := time.Now().UTC()
	task.ID = r.nextID
	task.CreatedAt = now
	task.UpdatedAt = now
	r.byID[task.ID] = *task
	return nil
}

func (r *MemoryTaskRepository) GetForOwner(_ context.Context, id, ownerID int64) (*domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	task, ok := r.byID[id]
	if !ok || task.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return &task, nil
}

func (r *MemoryTaskRepository) ListByOwner(_ context.Context, ownerID int64, offset, limit int) ([]domain.Task, error) {
	r.mu.RLock()
	owned := make([]domain.Task, 0)
	for _, task := range r.byID {
		if task.OwnerID == ownerID {
			owned = append(owned, task)
		}
	}
	r.mu.RUnlock()

	sort.Slice(owned, func(i, j int) bool { return owned[i].ID < owned[j].ID })
	if offset >= len(owned) {
		return []domain.Task{}, nil
	}
	end := len(owned)
	if limit >= 0 && offset+limit < end {
		end = offset + limit
	}
	return owned[offset:end], nil
}

func (r *MemoryTaskRepository) Update(_ context.Context, task *domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[task.ID]
	if !ok || existing.OwnerID != task.OwnerID {
		return ErrNotFound
	}
	task.CreatedAt = existing.CreatedAt
	task.UpdatedAt = time.Now().UTC()
	r.byID[task.ID] = *task
	return nil
}

func (r *MemoryTaskRepository) Delete(_ context.Context, id, ownerID int64) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.byID[id]
	if !ok || task.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	delete(r.byID, id)
	return &task, nil
}

var (
	_ UserRepository = (*MemoryUserRepository)(nil)
	_ TaskRepository = (*MemoryTaskRepository)(nil)
)

// MemoryTaskHistoryRepository is an in-memory TaskHistoryRepository.
type MemoryTaskHistoryRepository struct {
	mu      sync.RWMutex
	nextID  int64
	entries []domain.TaskHistory
}

// NewMemoryTaskHistoryRepository creates an empty store.
func NewMemoryTaskHistoryRepository() *MemoryTaskHistoryRepository {
	return &MemoryTaskHistoryRepository{}
}

func (r *MemoryTaskHistoryRepository) Create(_ context.Context, history *domain.TaskHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	history.ID = r.nextID
	history.CreatedAt = time.Now().UTC()
	r.entries = append(r.entries, *history)
	return nil
}

func (r *MemoryTaskHistoryRepository) ListByTask(_ context.Context, taskID, ownerID int64) ([]domain.TaskHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.TaskHistory, 0)
	for _, entry := range r.entries {
		if entry.TaskID == taskID && entry.OwnerID == ownerID {
			result = append(result, entry)
		}
	}
	return result, nil
}

var _ TaskHistoryRepository = (*MemoryTaskHistoryRepository)(nil)
