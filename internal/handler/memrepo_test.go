package handler

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/hitoshi/postboard/internal/model"
	"github.com/hitoshi/postboard/internal/repository"
)

// memUserRepo はルーター統合テスト用のインメモリUserRepository。
type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
}

var _ repository.UserRepository = (*memUserRepo)(nil)

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*model.User)}
}

func (m *memUserRepo) Create(ctx context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
		if u.Username == user.Username {
			return repository.ErrDuplicateUsername
		}
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memUserRepo) find(match func(*model.User) bool) *model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			cp := *u
			return &cp
		}
	}
	return nil
}

func (m *memUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.ID == id }), nil
}

func (m *memUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.Email == email }), nil
}

func (m *memUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.Username == username }), nil
}

func (m *memUserRepo) FindByEmailOrUsername(ctx context.Context, email, username string) (*model.User, error) {
	if email != "" {
		if u := m.find(func(u *model.User) bool { return u.Email == email }); u != nil {
			return u, nil
		}
	}
	if username != "" {
		return m.find(func(u *model.User) bool { return u.Username == username }), nil
	}
	return nil, nil
}

// memPostRepo はルーター統合テスト用のインメモリPostRepository。
type memPostRepo struct {
	mu    sync.Mutex
	posts map[string]*model.Post
}

var _ repository.PostRepository = (*memPostRepo)(nil)

func newMemPostRepo() *memPostRepo {
	return &memPostRepo{posts: make(map[string]*model.Post)}
}

func (m *memPostRepo) Create(ctx context.Context, p *model.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.posts[p.ID] = &cp
	return nil
}

func (m *memPostRepo) FindByID(ctx context.Context, id string) (*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

// matching は検索語に一致する投稿を新しい順で返す。
func (m *memPostRepo) matching(search string) []*model.Post {
	m.mu.Lock()
	defer m.mu.Unlock()
	needle := strings.ToLower(search)
	var out []*model.Post
	for _, p := range m.posts {
		if needle == "" ||
			strings.Contains(strings.ToLower(p.Title), needle) ||
			strings.Contains(strings.ToLower(p.AuthorUsername), needle) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sortNewestFirst(out)
	return out
}

func (m *memPostRepo) List(ctx context.Context, filter model.PostFilter) ([]*model.Post, error) {
	all := m.matching(filter.Search)
	if filter.Offset >= len(all) {
		return []*model.Post{}, nil
	}
	end := filter.Offset + filter.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[filter.Offset:end], nil
}

func (m *memPostRepo) Count(ctx context.Context, search string) (int, error) {
	return len(m.matching(search)), nil
}

func (m *memPostRepo) ListByAuthorID(ctx context.Context, authorID string) ([]*model.Post, error) {
	var out []*model.Post
	for _, p := range m.matching("") {
		if p.AuthorID == authorID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memPostRepo) Update(ctx context.Context, p *model.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.posts[p.ID]
	if !ok {
		return nil
	}
	existing.Title = p.Title
	existing.Content = p.Content
	existing.ImageURL = p.ImageURL
	existing.UpdatedAt = p.UpdatedAt
	return nil
}

func (m *memPostRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.posts, id)
	return nil
}

func sortNewestFirst(posts []*model.Post) {
	sort.Slice(posts, func(i, j int) bool {
		if !posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].CreatedAt.After(posts[j].CreatedAt)
		}
		return posts[i].ID > posts[j].ID
	})
}
