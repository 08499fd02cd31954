package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/sakif/blog-platform/internal/apperror"
	"github.com/sakif/blog-platform/internal/model"
	"github.com/sakif/blog-platform/internal/repository"
)

// =========================================================================
// MOCK REPOSITORIES
// =========================================================================
//
// In-memory implementations of the repository interfaces. They keep only
// as much behaviour as the services rely on: NotFound for missing rows,
// Conflict for duplicate keys, cursor semantics identical to the SQL store.

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// ----- categories -----

type mockCategoryRepo struct {
	categories map[int64]*model.Category
	nextID     int64
}

func newMockCategoryRepo() *mockCategoryRepo {
	return &mockCategoryRepo{categories: make(map[int64]*model.Category)}
}

func (m *mockCategoryRepo) Create(_ context.Context, c *model.Category) error {
	for _, other := range m.categories {
		if other.Slug == c.Slug {
			return apperror.Conflict("category", "slug", c.Slug)
		}
		if other.Name == c.Name {
			return apperror.Conflict("category", "name", c.Name)
		}
	}
	m.nextID++
	c.ID = m.nextID
	c.CreatedAt = epoch.Add(time.Duration(c.ID) * time.Second)
	c.UpdatedAt = c.CreatedAt
	stored := *c
	m.categories[c.ID] = &stored
	return nil
}

func (m *mockCategoryRepo) GetByID(_ context.Context, id int64, _ bool) (*model.Category, error) {
	c, ok := m.categories[id]
	if !ok {
		return nil, apperror.NotFound("category", strconv.FormatInt(id, 10))
	}
	out := *c
	return &out, nil
}

func (m *mockCategoryRepo) GetBySlug(_ context.Context, slug string, _ bool) (*model.Category, error) {
	for _, c := range m.categories {
		if c.Slug == slug {
			out := *c
			return &out, nil
		}
	}
	return nil, apperror.NotFoundBy("category", "slug", slug)
}

func (m *mockCategoryRepo) FindByName(_ context.Context, name string, excludeID int64) (*model.Category, error) {
	for _, c := range m.categories {
		if c.Name == name && c.ID != excludeID {
			out := *c
			return &out, nil
		}
	}
	return nil, nil
}

func (m *mockCategoryRepo) FindBySlug(_ context.Context, slug string, excludeID int64) (*model.Category, error) {
	for _, c := range m.categories {
		if c.Slug == slug && c.ID != excludeID {
			out := *c
			return &out, nil
		}
	}
	return nil, nil
}

func (m *mockCategoryRepo) ListPublic(context.Context) ([]model.Category, error) {
	out := m.all()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockCategoryRepo) ListAdmin(context.Context) ([]model.Category, error) {
	out := m.all()
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *mockCategoryRepo) all() []model.Category {
	out := make([]model.Category, 0, len(m.categories))
	for _, c := range m.categories {
		out = append(out, *c)
	}
	return out
}

func (m *mockCategoryRepo) Update(_ context.Context, id int64, ch repository.CategoryChanges) error {
	c, ok := m.categories[id]
	if !ok {
		return apperror.NotFound("category", strconv.FormatInt(id, 10))
	}
	if ch.Name != nil {
		c.Name = *ch.Name
	}
	if ch.Slug != nil {
		c.Slug = *ch.Slug
	}
	if ch.Description != nil {
		c.Description = *ch.Description
	}
	return nil
}

func (m *mockCategoryRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.categories[id]; !ok {
		return apperror.NotFound("category", strconv.FormatInt(id, 10))
	}
	delete(m.categories, id)
	return nil
}

// ----- posts -----

type mockPostRepo struct {
	posts      map[int64]*model.Post
	links      map[int64][]int64
	categories *mockCategoryRepo
	nextID     int64

	// createErr, when set, is returned by Create.
	createErr error
	// categoryCalls counts CategoriesForPosts calls.
	categoryCalls int
}

func newMockPostRepo(categories *mockCategoryRepo) *mockPostRepo {
	return &mockPostRepo{
		posts:      make(map[int64]*model.Post),
		links:      make(map[int64][]int64),
		categories: categories,
	}
}

func (m *mockPostRepo) Create(_ context.Context, p *model.Post, categoryIDs []int64) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, id := range categoryIDs {
		if _, ok := m.categories.categories[id]; !ok {
			return apperror.ValidationFailed("categoryIds", fmt.Sprintf("category %d does not exist", id))
		}
	}
	m.nextID++
	p.ID = m.nextID
	p.CreatedAt = epoch.Add(time.Duration(p.ID) * time.Second)
	p.UpdatedAt = p.CreatedAt
	p.Author = model.Author{ID: p.CreatedByID, Name: "author " + p.CreatedByID}
	stored := *p
	m.posts[p.ID] = &stored
	m.links[p.ID] = append([]int64(nil), categoryIDs...)
	return nil
}

func (m *mockPostRepo) GetByID(_ context.Context, id int64) (*model.Post, error) {
	p, ok := m.posts[id]
	if !ok {
		return nil, apperror.NotFound("post", strconv.FormatInt(id, 10))
	}
	out := *p
	return &out, nil
}

func (m *mockPostRepo) GetBySlug(_ context.Context, slug string) (*model.Post, error) {
	for _, p := range m.posts {
		if p.Slug == slug {
			out := *p
			return &out, nil
		}
	}
	return nil, apperror.NotFoundBy("post", "slug", slug)
}

func (m *mockPostRepo) ListPublished(_ context.Context, f repository.PublishedFilter) ([]model.Post, error) {
	var rows []model.Post
	for _, p := range m.posts {
		if !p.Published {
			continue
		}
		if f.AuthorID != "" && p.CreatedByID != f.AuthorID {
			continue
		}
		if f.CategoryID != nil && !m.linked(p.ID, *f.CategoryID) {
			continue
		}
		rows = append(rows, *p)
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := *rows[i].PublishedAt, *rows[j].PublishedAt
		if !a.Equal(b) {
			return a.After(b)
		}
		return rows[i].ID > rows[j].ID
	})
	return fromCursor(rows, f.Cursor, f.Limit), nil
}

func (m *mockPostRepo) ListAll(_ context.Context, f repository.AllFilter) ([]model.Post, error) {
	var rows []model.Post
	for _, p := range m.posts {
		if f.Published != nil && p.Published != *f.Published {
			continue
		}
		if f.CreatedBy != "" && p.CreatedByID != f.CreatedBy {
			continue
		}
		rows = append(rows, *p)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID > rows[j].ID })
	return fromCursor(rows, f.Cursor, f.Limit), nil
}

// fromCursor starts rows at the post whose id is cursor. A cursor that is
// not in rows yields nothing.
func fromCursor(rows []model.Post, cursor *int64, limit int) []model.Post {
	start := 0
	if cursor != nil {
		start = -1
		for i, p := range rows {
			if p.ID == *cursor {
				start = i
				break
			}
		}
		if start < 0 {
			return []model.Post{}
		}
	}
	rows = rows[start:]
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

func (m *mockPostRepo) linked(postID, categoryID int64) bool {
	for _, id := range m.links[postID] {
		if id == categoryID {
			return true
		}
	}
	return false
}

func (m *mockPostRepo) Update(_ context.Context, id int64, ch repository.PostChanges) error {
	p, ok := m.posts[id]
	if !ok {
		return apperror.NotFound("post", strconv.FormatInt(id, 10))
	}
	if ch.CategoryIDs != nil {
		for _, cid := range *ch.CategoryIDs {
			if _, ok := m.categories.categories[cid]; !ok {
				return apperror.ValidationFailed("categoryIds", fmt.Sprintf("category %d does not exist", cid))
			}
		}
		m.links[id] = append([]int64(nil), *ch.CategoryIDs...)
	}
	if ch.Title != nil {
		p.Title = *ch.Title
	}
	if ch.Content != nil {
		p.Content = *ch.Content
	}
	if ch.Excerpt != nil {
		p.Excerpt = *ch.Excerpt
	}
	if ch.FeaturedImage != nil {
		p.FeaturedImage = *ch.FeaturedImage
	}
	if ch.Published != nil {
		p.Published = *ch.Published
	}
	if ch.PublishedAt != nil {
		p.PublishedAt = *ch.PublishedAt
	}
	p.UpdatedAt = p.UpdatedAt.Add(time.Minute)
	return nil
}

func (m *mockPostRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.posts[id]; !ok {
		return apperror.NotFound("post", strconv.FormatInt(id, 10))
	}
	delete(m.posts, id)
	delete(m.links, id)
	return nil
}

func (m *mockPostRepo) CategoriesForPosts(_ context.Context, ids []int64) (map[int64][]model.Category, error) {
	m.categoryCalls++
	out := make(map[int64][]model.Category)
	for _, id := range ids {
		for _, cid := range m.links[id] {
			if c, ok := m.categories.categories[cid]; ok {
				out[id] = append(out[id], *c)
			}
		}
	}
	return out, nil
}

func (m *mockPostRepo) StatsForAuthor(_ context.Context, userID string) (*model.UserStats, error) {
	var stats model.UserStats
	for _, p := range m.posts {
		if p.CreatedByID == userID && p.Published {
			stats.TotalPosts++
			stats.TotalLikes += p.LikeCount
			stats.TotalBookmarks += p.BookmarkCount
		}
	}
	return &stats, nil
}

// ----- relations -----

type mockRelationRepo struct {
	posts   *mockPostRepo
	entries []model.RelationEntry
	nextID  int64
}

func newMockRelationRepo(posts *mockPostRepo) *mockRelationRepo {
	return &mockRelationRepo{posts: posts}
}

func (m *mockRelationRepo) Toggle(_ context.Context, postID int64, userID string) (bool, error) {
	for i, e := range m.entries {
		if e.PostID == postID && e.UserID == userID {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return false, nil
		}
	}
	if _, ok := m.posts.posts[postID]; !ok {
		return false, apperror.NotFound("post", strconv.FormatInt(postID, 10))
	}
	m.nextID++
	m.entries = append(m.entries, model.RelationEntry{
		ID:        m.nextID,
		PostID:    postID,
		UserID:    userID,
		CreatedAt: epoch.Add(time.Duration(m.nextID) * time.Hour),
	})
	return true, nil
}

func (m *mockRelationRepo) Exists(_ context.Context, postID int64, userID string) (bool, error) {
	for _, e := range m.entries {
		if e.PostID == postID && e.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRelationRepo) Count(_ context.Context, postID int64) (int64, error) {
	var n int64
	for _, e := range m.entries {
		if e.PostID == postID {
			n++
		}
	}
	return n, nil
}

func (m *mockRelationRepo) ListByUser(_ context.Context, userID string, cursor *int64, limit int) ([]model.RelationEntry, error) {
	var rows []model.RelationEntry
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if e.UserID != userID {
			continue
		}
		p := *m.posts.posts[e.PostID]
		e.Post = &p
		rows = append(rows, e)
	}
	if cursor != nil {
		start := -1
		for i, e := range rows {
			if e.ID == *cursor {
				start = i
				break
			}
		}
		if start < 0 {
			return []model.RelationEntry{}, nil
		}
		rows = rows[start:]
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// ----- users -----

type mockUserRepo struct {
	mu     sync.Mutex
	users  map[string]*model.User
	nextID int

	// upsertErr, when set, is returned by UpsertGitHub.
	upsertErr error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) add(u model.User) *model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	m.users[u.ID] = &u
	out := u
	return &out
}

func (m *mockUserRepo) UpsertGitHub(_ context.Context, u *model.User) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.mu.Lock()
	for _, existing := range m.users {
		sameGitHub := existing.GitHubID != nil && *existing.GitHubID == *u.GitHubID
		sameEmail := existing.Email != nil && u.Email != nil && *existing.Email == *u.Email
		if sameGitHub || sameEmail {
			existing.GitHubID = u.GitHubID
			if existing.Name == "" {
				existing.Name = u.Name
			}
			if u.Email != nil {
				existing.Email = u.Email
			}
			if u.Image != nil {
				existing.Image = u.Image
			}
			*u = *existing
			m.mu.Unlock()
			return nil
		}
	}
	m.mu.Unlock()
	return m.Create(context.Background(), u)
}

func (m *mockUserRepo) Create(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email != nil && u.Email != nil && *existing.Email == *u.Email {
			return apperror.Conflict("user", "email", *u.Email)
		}
	}
	m.nextID++
	u.ID = fmt.Sprintf("user-%d", m.nextID)
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	u.CreatedAt = epoch
	u.UpdatedAt = epoch
	stored := *u
	m.users[u.ID] = &stored
	return nil
}

func (m *mockUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	out := *u
	return &out, nil
}

func (m *mockUserRepo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email != nil && *u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, apperror.NotFoundBy("user", "email", email)
}

func (m *mockUserRepo) UpdateProfile(_ context.Context, id string, ch repository.ProfileChanges) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	if ch.Name != nil {
		u.Name = *ch.Name
	}
	if ch.Bio != nil {
		u.Bio = *ch.Bio
	}
	if ch.Website != nil {
		u.Website = *ch.Website
	}
	if ch.Twitter != nil {
		u.Twitter = *ch.Twitter
	}
	if ch.GitHub != nil {
		u.GitHub = *ch.GitHub
	}
	out := *u
	return &out, nil
}

// ----- notifier -----

type recordingNotifier struct {
	mu    sync.Mutex
	calls [][]string
}

func (n *recordingNotifier) Revalidate(_ context.Context, paths ...string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, paths)
}

func (n *recordingNotifier) last() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.calls) == 0 {
		return nil
	}
	return n.calls[len(n.calls)-1]
}

// =========================================================================
// FIXTURE
// =========================================================================

type fixture struct {
	users      *mockUserRepo
	posts      *mockPostRepo
	categories *mockCategoryRepo
	likes      *mockRelationRepo
	bookmarks  *mockRelationRepo
	notifier   *recordingNotifier

	postSvc     *PostService
	categorySvc *CategoryService
	likeSvc     *RelationService
	bookmarkSvc *RelationService
	profileSvc  *ProfileService
	userSvc     *UserService
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		users:      newMockUserRepo(),
		categories: newMockCategoryRepo(),
		notifier:   &recordingNotifier{},
	}
	f.posts = newMockPostRepo(f.categories)
	f.likes = newMockRelationRepo(f.posts)
	f.bookmarks = newMockRelationRepo(f.posts)

	logger := newTestLogger()
	f.postSvc = NewPostService(f.posts, f.likes, f.bookmarks, f.notifier, logger)
	clock := epoch.Add(24 * time.Hour)
	f.postSvc.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	f.categorySvc = NewCategoryService(f.categories, logger)
	f.likeSvc = NewRelationService("like", f.likes, f.posts, logger)
	f.bookmarkSvc = NewRelationService("bookmark", f.bookmarks, f.posts, logger)
	f.profileSvc = NewProfileService(f.users, logger)
	f.userSvc = NewUserService(f.users, f.posts, logger)
	return f
}

// user registers a plain user and returns its principal.
func (f *fixture) user(id string) *model.Principal {
	f.users.add(model.User{ID: id, Name: id})
	return &model.Principal{UserID: id, Role: model.RoleUser}
}

func (f *fixture) admin(id string) *model.Principal {
	f.users.add(model.User{ID: id, Name: id, Role: model.RoleAdmin})
	return &model.Principal{UserID: id, Role: model.RoleAdmin}
}

func (f *fixture) category(t *testing.T, name string) *model.Category {
	t.Helper()
	c, err := f.categorySvc.Create(context.Background(), &model.Principal{UserID: "setup"}, CategoryInput{Name: name})
	if err != nil {
		t.Fatalf("creating category %q: %v", name, err)
	}
	return c
}

func (f *fixture) post(t *testing.T, actor *model.Principal, title string, published bool, categoryIDs ...int64) *model.Post {
	t.Helper()
	p, err := f.postSvc.Create(context.Background(), actor, CreatePostInput{
		Title:       title,
		Content:     "# " + title,
		Published:   published,
		CategoryIDs: categoryIDs,
	})
	if err != nil {
		t.Fatalf("creating post %q: %v", title, err)
	}
	return p
}

func ptr[T any](v T) *T { return &v }
