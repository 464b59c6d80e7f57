package queries

import (
	"context"
	"sync"

	"launchpad/internal/cache"
	"launchpad/internal/config"
	"launchpad/internal/models"
)

// pageList is immutable once stored; fetching a page stores a new one.
type pageList struct {
	pages   [][]models.Project
	hasNext bool
}

// PageResult is the state of a paginated project search
type PageResult struct {
	Status      Status
	Pages       [][]models.Project
	HasNextPage bool
	Err         error
}

// Projects flattens the fetched pages
func (r PageResult) Projects() []models.Project {
	var out []models.Project
	for _, page := range r.Pages {
		out = append(out, page...)
	}
	return out
}

// ProjectSearch pages through the user's projects filtered by name.
// Pages are cached under ProjectsKey(name), so invalidating the
// projects prefix restarts the search from the first page.
type ProjectSearch struct {
	c     *Client
	limit int

	mu   sync.Mutex
	name string
}

// SearchProjects starts a paginated search. A limit of zero or less
// uses the default page size.
func (c *Client) SearchProjects(name string, limit int) *ProjectSearch {
	if limit <= 0 {
		limit = config.DefaultPageSize
	}
	return &ProjectSearch{c: c, limit: limit, name: name}
}

// Filter returns the current name filter
func (s *ProjectSearch) Filter() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// SetFilter changes the name filter, discarding the pages fetched for
// the previous one.
func (s *ProjectSearch) SetFilter(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name == s.name {
		return
	}
	if err := s.c.store.Remove(ProjectsKey(s.name)); err != nil {
		s.c.logger.Error("Failed to drop project pages", "filter", s.name, "error", err)
	}
	s.name = name
}

func (s *ProjectSearch) load() *pageList {
	list, _, ok := cache.Lookup[*pageList](s.c.store, ProjectsKey(s.name))
	if !ok {
		return nil
	}
	return list
}

func (s *ProjectSearch) result(list *pageList) PageResult {
	if list == nil {
		return PageResult{Status: StatusPending, HasNextPage: true}
	}
	return PageResult{Status: StatusSuccess, Pages: list.pages, HasNextPage: list.hasNext}
}

// Pages returns what has been fetched so far without a request
func (s *ProjectSearch) Pages() PageResult {
	if s.c.tokens.Token() == nil {
		return PageResult{Status: StatusDisabled}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result(s.load())
}

// FetchNextPage requests the page after the last fetched one. It is a
// no-op once a short page has been seen. A failed fetch leaves the
// fetched pages in place and can be retried.
func (s *ProjectSearch) FetchNextPage(ctx context.Context) PageResult {
	token := s.c.tokens.Token()
	if token == nil {
		return PageResult{Status: StatusDisabled}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.load()
	if before != nil && !before.hasNext {
		return s.result(before)
	}

	var pages [][]models.Project
	if before != nil {
		pages = before.pages
	}
	offset := len(pages) * s.limit

	page, err := s.c.backend.ListProjects(ctx, token.AccessToken, s.limit, offset, s.name)
	if err != nil {
		r := s.result(before)
		r.Status = StatusError
		r.Err = err
		return r
	}

	// Signed out or invalidated while the request was in flight; the page
	// belongs to a list that no longer exists.
	if !s.c.sameSession(token) {
		return PageResult{Status: StatusDisabled}
	}
	if current := s.load(); current != before {
		return s.result(current)
	}

	next := &pageList{
		pages:   append(pages[:len(pages):len(pages)], page),
		hasNext: len(page) >= s.limit,
	}
	if err := s.c.store.Set(ProjectsKey(s.name), next); err != nil {
		s.c.logger.Error("Failed to cache project page", "filter", s.name, "error", err)
	}
	return s.result(next)
}
