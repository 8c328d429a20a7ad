package service

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/prn-tf/bugtracker/internal/domain"
	"github.com/prn-tf/bugtracker/internal/storage"
)

// MockUserRepository is an in-memory repository.UserRepository.
type MockUserRepository struct {
	mu        sync.Mutex
	users     map[uuid.UUID]*domain.User
	createErr error
	getErr    error
	updateErr error
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[uuid.UUID]*domain.User)}
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, u := range m.users {
		if u.Username == user.Username {
			return domain.ErrDuplicateUsername
		}
	}
	user.ID = uuid.New()
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) UpdateRole(ctx context.Context, id uuid.UUID, isAdmin bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	u, ok := m.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.IsAdmin = isAdmin
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MockUserRepository) List(ctx context.Context) ([]*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	result := make([]*domain.User, 0, len(m.users))
	for _, u := range m.users {
		cp := *u
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Username < result[j].Username })
	return result, nil
}

// add inserts a user directly, bypassing duplicate checks.
func (m *MockUserRepository) add(username string, isAdmin bool) *domain.User {
	u := domain.NewUser(username, "x")
	u.ID = uuid.New()
	u.IsAdmin = isAdmin
	m.users[u.ID] = u
	return u
}

// MockBugRepository is an in-memory repository.BugRepository.
type MockBugRepository struct {
	mu        sync.Mutex
	bugs      map[uuid.UUID]*domain.Bug
	creates   int
	updates   int
	createErr error
	listErr   error
	updateErr error
}

func NewMockBugRepository() *MockBugRepository {
	return &MockBugRepository{bugs: make(map[uuid.UUID]*domain.Bug)}
}

func (m *MockBugRepository) Create(ctx context.Context, bug *domain.Bug) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	bug.ID = uuid.New()
	cp := *bug
	m.bugs[bug.ID] = &cp
	m.creates++
	return nil
}

func (m *MockBugRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Bug, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bugs[id]
	if !ok {
		return nil, domain.ErrBugNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *MockBugRepository) ListAll(ctx context.Context) ([]*domain.Bug, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	result := make([]*domain.Bug, 0, len(m.bugs))
	for _, b := range m.bugs {
		cp := *b
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (m *MockBugRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.BugStatus, expectedVersion int64) (*domain.Bug, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	b, ok := m.bugs[id]
	if !ok {
		return nil, domain.ErrBugNotFound
	}
	if expectedVersion != 0 && b.Version != expectedVersion {
		return nil, domain.ErrStaleBug
	}
	b.Status = status
	b.Version++
	b.UpdatedAt = time.Now().UTC().Add(time.Millisecond)
	m.updates++
	cp := *b
	return &cp, nil
}

// add inserts a bug owned by creator directly.
func (m *MockBugRepository) add(page string, creator *domain.User) *domain.Bug {
	b := domain.NewBug(page, "broken", "", creator.Principal())
	b.ID = uuid.New()
	m.bugs[b.ID] = b
	cp := *b
	return &cp
}

// fakeUploads is a storage.Backend that records calls.
type fakeUploads struct {
	saveErr error
	created bool
	saved   []string
	removed []string
}

func (f *fakeUploads) Save(ctx context.Context, att *storage.Attachment) (*storage.Stored, error) {
	if _, err := storage.Extension(att.Filename); err != nil {
		return nil, err
	}
	n, _ := io.Copy(io.Discard, att.Body)
	if n > storage.DefaultMaxSize {
		return nil, &domain.UploadError{Reason: storage.MsgTooLarge}
	}
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	url := "/uploads/" + att.Filename
	f.saved = append(f.saved, url)
	return &storage.Stored{URL: url, Created: f.created}, nil
}

func (f *fakeUploads) Remove(ctx context.Context, url string) error {
	f.removed = append(f.removed, url)
	return nil
}
