// Package catalog reads courses, learning paths, concepts and student
// profiles from the relational store backing the platform.
package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/creastat/retrieval"
	"github.com/supabase-community/supabase-go"
)

const (
	tableCourses  = "courses"
	tablePaths    = "learning_paths"
	tableConcepts = "concepts"
	tableProfiles = "student_profiles"
)

// Config holds Supabase connection configuration
type Config struct {
	URL      string
	APIKey   string
	CacheTTL time.Duration // Default: 5 minutes
}

// querier runs one select against a table. eq holds column equality filters.
type querier interface {
	selectAll(ctx context.Context, table string, eq map[string]string, out any) error
}

// Client implements the Store interface using Supabase
type Client struct {
	db       querier
	cache    *profileCache
	cacheTTL time.Duration
	now      func() time.Time
}

// profileCache provides thread-safe caching for profile lookups
type profileCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry[*retrieval.StudentProfile]
}

type cacheEntry[T any] struct {
	value     T
	expiresAt time.Time
}

// New creates a new Supabase catalog client
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: supabase URL is required", retrieval.ErrInvalidConfig)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: supabase API key is required", retrieval.ErrInvalidConfig)
	}

	client, err := supabase.NewClient(cfg.URL, cfg.APIKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	return newWithQuerier(&supabaseQuerier{client: client}, cfg.CacheTTL), nil
}

func newWithQuerier(db querier, ttl time.Duration) *Client {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &Client{
		db:       db,
		cacheTTL: ttl,
		now:      time.Now,
		cache: &profileCache{
			entries: make(map[string]*cacheEntry[*retrieval.StudentProfile]),
		},
	}
}

// ListCourses implements Store.
func (c *Client) ListCourses(ctx context.Context) ([]retrieval.Course, error) {
	var rows []CourseRow
	if err := c.db.selectAll(ctx, tableCourses, nil, &rows); err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}

	courses := make([]retrieval.Course, len(rows))
	for i, row := range rows {
		courses[i] = row.Course()
	}
	return courses, nil
}

// ListPaths implements Store.
func (c *Client) ListPaths(ctx context.Context) ([]retrieval.Path, error) {
	var rows []PathRow
	if err := c.db.selectAll(ctx, tablePaths, nil, &rows); err != nil {
		return nil, fmt.Errorf("failed to list learning paths: %w", err)
	}

	paths := make([]retrieval.Path, len(rows))
	for i, row := range rows {
		paths[i] = row.Path()
	}
	return paths, nil
}

// ListConcepts implements Store.
func (c *Client) ListConcepts(ctx context.Context) ([]retrieval.Concept, error) {
	var rows []ConceptRow
	if err := c.db.selectAll(ctx, tableConcepts, nil, &rows); err != nil {
		return nil, fmt.Errorf("failed to list concepts: %w", err)
	}

	concepts := make([]retrieval.Concept, len(rows))
	for i, row := range rows {
		concepts[i] = row.Concept()
	}
	return concepts, nil
}

// GetStudentProfile implements Store.
func (c *Client) GetStudentProfile(ctx context.Context, studentID string) (*retrieval.StudentProfile, error) {
	if studentID == "" {
		return nil, retrieval.NewValidationError("studentID", "must not be empty")
	}

	// Check cache first
	if cached := c.getFromCache(studentID); cached != nil {
		return cached, nil
	}

	var rows []StudentProfileRow
	if err := c.db.selectAll(ctx, tableProfiles, map[string]string{"id": studentID}, &rows); err != nil {
		return nil, fmt.Errorf("failed to get student profile: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	profile := rows[0].Profile()
	c.addToCache(studentID, profile)
	return profile, nil
}

// Close closes the Supabase client
func (c *Client) Close() error {
	// Supabase client doesn't require explicit close
	return nil
}

// getFromCache retrieves a profile from cache by student ID
func (c *Client) getFromCache(key string) *retrieval.StudentProfile {
	c.cache.mu.RLock()
	defer c.cache.mu.RUnlock()

	if e, ok := c.cache.entries[key]; ok {
		if c.now().Before(e.expiresAt) {
			return e.value
		}
	}
	return nil
}

// addToCache adds a profile to cache
func (c *Client) addToCache(key string, value *retrieval.StudentProfile) {
	c.cache.mu.Lock()
	defer c.cache.mu.Unlock()

	c.cache.entries[key] = &cacheEntry[*retrieval.StudentProfile]{
		value:     value,
		expiresAt: c.now().Add(c.cacheTTL),
	}
}

// supabaseQuerier runs selects through the PostgREST builder.
type supabaseQuerier struct {
	client *supabase.Client
}

func (q *supabaseQuerier) selectAll(_ context.Context, table string, eq map[string]string, out any) error {
	query := q.client.From(table).Select("*", "", false)
	for column, value := range eq {
		query = query.Eq(column, value)
	}
	_, err := query.ExecuteTo(out)
	return err
}

// Compile-time check that Client implements Store
var _ Store = (*Client)(nil)
