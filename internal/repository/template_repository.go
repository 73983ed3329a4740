package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/shared/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const templatesCollection = "notification_templates"

const (
	maxCacheSize    = 100         // Maximum number of cached templates
	maxCacheKeyLen  = 512         // Maximum length of cache key
	maxTemplateSize = 1024 * 1024 // Maximum template size: 1MB
)

// TemplateCache holds resolved active templates for a short TTL
type TemplateCache struct {
	templates map[string]*domain.NotificationTemplate
	mu        sync.RWMutex
	ttl       time.Duration
	entries   map[string]time.Time
	maxSize   int
}

// NewTemplateCache creates a new template cache with size limits
func NewTemplateCache(ttl time.Duration) *TemplateCache {
	return &TemplateCache{
		templates: make(map[string]*domain.NotificationTemplate),
		entries:   make(map[string]time.Time),
		ttl:       ttl,
		maxSize:   maxCacheSize,
	}
}

func validateCacheKey(key string) error {
	if len(key) == 0 {
		return errors.New("cache key cannot be empty")
	}
	if len(key) > maxCacheKeyLen {
		return errors.New("cache key exceeds maximum length")
	}
	if strings.ContainsAny(key, "\x00\n\r") {
		return errors.New("cache key contains invalid characters")
	}
	return nil
}

// Get retrieves a template from cache
func (c *TemplateCache) Get(key string) (*domain.NotificationTemplate, bool) {
	if err := validateCacheKey(key); err != nil {
		return nil, false
	}

	c.mu.RLock()
	template, exists := c.templates[key]
	entryTime, hasEntry := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		return nil, false
	}

	if !hasEntry || time.Since(entryTime) > c.ttl {
		c.mu.Lock()
		delete(c.templates, key)
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}

	return template, true
}

// Set stores a template in cache
func (c *TemplateCache) Set(key string, template *domain.NotificationTemplate) error {
	if err := validateCacheKey(key); err != nil {
		return err
	}

	if template != nil {
		if len(template.Subject)+len(template.Body) > maxTemplateSize {
			return errors.New("template size exceeds maximum allowed size")
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.templates) >= c.maxSize && c.templates[key] == nil {
		c.evictOldest()
	}

	c.templates[key] = template
	c.entries[key] = time.Now()
	return nil
}

// evictOldest removes the oldest entry (must be called with lock held)
func (c *TemplateCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time
	first := true

	for key, entryTime := range c.entries {
		if first || entryTime.Before(oldestTime) {
			oldestKey = key
			oldestTime = entryTime
			first = false
		}
	}

	if oldestKey != "" {
		delete(c.templates, oldestKey)
		delete(c.entries, oldestKey)
	}
}

// Invalidate removes a template from cache
func (c *TemplateCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.templates, key)
	delete(c.entries, key)
}

// TemplateRepository reads notification templates
type TemplateRepository struct {
	client *mongodb.MongoClient
	cache  *TemplateCache
}

// NewTemplateRepository creates a new template repository. A zero cacheTTL
// disables caching.
func NewTemplateRepository(client *mongodb.MongoClient, cacheTTL time.Duration) *TemplateRepository {
	repo := &TemplateRepository{client: client}
	if cacheTTL > 0 {
		repo.cache = NewTemplateCache(cacheTTL)
	}
	return repo
}

// EnsureIndexes creates the lookup index used by FindActiveByType
func (r *TemplateRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "type", Value: 1},
				{Key: "is_active", Value: 1},
				{Key: "updated_at", Value: -1},
			},
			Options: options.Index().SetName("type_active_updated_idx"),
		},
	}

	return r.client.CreateIndexes(ctx, templatesCollection, indexes)
}

func activeCacheKey(t domain.TriggerType) string {
	return "active:" + string(t)
}

// FindActiveByType returns the active template for t, or nil when none is
// active. Several active templates resolve via domain.PickActiveTemplate.
func (r *TemplateRepository) FindActiveByType(ctx context.Context, t domain.TriggerType) (*domain.NotificationTemplate, error) {
	key := activeCacheKey(t)
	if r.cache != nil {
		if template, found := r.cache.Get(key); found {
			return template, nil
		}
	}

	filter := bson.M{
		"type":      t,
		"is_active": true,
	}
	opts := options.Find().SetSort(bson.D{
		{Key: "updated_at", Value: -1},
		{Key: "_id", Value: 1},
	})

	cursor, err := r.client.Collection(templatesCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var templates []*domain.NotificationTemplate
	if err = cursor.All(ctx, &templates); err != nil {
		return nil, err
	}

	template := domain.PickActiveTemplate(templates)
	if template != nil && r.cache != nil {
		_ = r.cache.Set(key, template)
	}
	return template, nil
}

// Invalidate drops the cached active template for t
func (r *TemplateRepository) Invalidate(t domain.TriggerType) {
	if r.cache != nil {
		r.cache.Invalidate(activeCacheKey(t))
	}
}
