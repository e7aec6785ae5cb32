package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/foodcourt/storefront-api/internal/apperrors"
	"github.com/foodcourt/storefront-api/internal/cache"
	"github.com/foodcourt/storefront-api/internal/dto"
	"github.com/foodcourt/storefront-api/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	defaultMenuLimit = 20
	maxMenuLimit     = 100
)

var ErrMenuItemNotFound = apperrors.NotFound("menu item not found")

// CatalogService serves the public menu. Reads go through the cache, admin
// writes purge it.
type CatalogService struct {
	db    *gorm.DB
	cache cache.Cache
}

func NewCatalogService(db *gorm.DB, c cache.Cache) *CatalogService {
	if c == nil {
		c = cache.Noop{}
	}
	return &CatalogService{db: db, cache: c}
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultMenuLimit
	}
	if limit > maxMenuLimit {
		limit = maxMenuLimit
	}
	return page, limit
}

func (s *CatalogService) ListMenu(ctx context.Context, q *dto.MenuQuery) (*dto.MenuPage, error) {
	if err := dto.Validate(q); err != nil {
		return nil, err
	}
	page, limit := normalizePage(q.Page, q.Limit)
	category := strings.TrimSpace(q.Category)

	key := fmt.Sprintf("menu:list:%s:%d:%d", strings.ToLower(category), page, limit)
	if v, ok := s.cache.Get(key); ok {
		if cached, ok := v.(*dto.MenuPage); ok {
			return cached, nil
		}
	}

	query := s.db.WithContext(ctx).Model(&models.MenuItem{}).Where("available = ?", true)
	if category != "" {
		query = query.Where("LOWER(category) = ?", strings.ToLower(category))
	}
	// Shared by the count and the page query.
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, apperrors.Dependency("failed to count menu", err)
	}

	items := make([]models.MenuItem, 0, limit)
	if err := query.Order("category ASC, name ASC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&items).Error; err != nil {
		return nil, apperrors.Dependency("failed to list menu", err)
	}

	result := &dto.MenuPage{Items: items, Page: page, Limit: limit, Total: total}
	s.cache.Set(key, result)
	return result, nil
}

// Search matches q case-insensitively against name, description and category.
func (s *CatalogService) Search(ctx context.Context, q *dto.SearchQuery) ([]models.MenuItem, error) {
	q.Q = strings.TrimSpace(q.Q)
	if err := dto.Validate(q); err != nil {
		return nil, err
	}
	_, limit := normalizePage(1, q.Limit)
	term := strings.ToLower(q.Q)

	key := fmt.Sprintf("menu:search:%s:%d", term, limit)
	if v, ok := s.cache.Get(key); ok {
		if cached, ok := v.([]models.MenuItem); ok {
			return cached, nil
		}
	}

	pattern := "%" + escapeLike(term) + "%"
	items := make([]models.MenuItem, 0)
	err := s.db.WithContext(ctx).
		Where("available = ?", true).
		Where("LOWER(name) LIKE ? ESCAPE '!' OR LOWER(description) LIKE ? ESCAPE '!' OR LOWER(category) LIKE ? ESCAPE '!'",
			pattern, pattern, pattern).
		Order("rating DESC, name ASC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, apperrors.Dependency("failed to search menu", err)
	}

	s.cache.Set(key, items)
	return items, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`)
	return r.Replace(s)
}

func (s *CatalogService) Categories(ctx context.Context) ([]string, error) {
	const key = "menu:categories"
	if v, ok := s.cache.Get(key); ok {
		if cached, ok := v.([]string); ok {
			return cached, nil
		}
	}

	categories := make([]string, 0)
	err := s.db.WithContext(ctx).Model(&models.MenuItem{}).
		Where("available = ?", true).
		Distinct().Order("category ASC").
		Pluck("category", &categories).Error
	if err != nil {
		return nil, apperrors.Dependency("failed to list categories", err)
	}

	s.cache.Set(key, categories)
	return categories, nil
}

// GetItem returns an available item by id.
func (s *CatalogService) GetItem(ctx context.Context, id uuid.UUID) (*models.MenuItem, error) {
	key := "menu:item:" + id.String()
	if v, ok := s.cache.Get(key); ok {
		if cached, ok := v.(*models.MenuItem); ok {
			return cached, nil
		}
	}

	var item models.MenuItem
	if err := s.db.WithContext(ctx).Where("id = ? AND available = ?", id, true).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMenuItemNotFound
		}
		return nil, apperrors.Dependency("failed to load menu item", err)
	}

	s.cache.Set(key, &item)
	return &item, nil
}

func (s *CatalogService) CreateItem(ctx context.Context, req *dto.MenuItemRequest) (*models.MenuItem, error) {
	if err := dto.Validate(req); err != nil {
		return nil, err
	}
	item := &models.MenuItem{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Category:    strings.TrimSpace(req.Category),
		Price:       req.Price,
		ImageURL:    req.ImageURL,
		IsVeg:       req.IsVeg,
		Available:   req.Available == nil || *req.Available,
		Rating:      req.Rating,
	}
	if err := s.db.WithContext(ctx).Create(item).Error; err != nil {
		return nil, apperrors.Dependency("failed to create menu item", err)
	}
	s.cache.Purge()
	slog.Info("menu item created", "menu_item_id", item.ID.String())
	return item, nil
}

func (s *CatalogService) UpdateItem(ctx context.Context, id uuid.UUID, req *dto.MenuItemRequest) (*models.MenuItem, error) {
	if err := dto.Validate(req); err != nil {
		return nil, err
	}
	updates := map[string]interface{}{
		"name":        strings.TrimSpace(req.Name),
		"description": req.Description,
		"category":    strings.TrimSpace(req.Category),
		"price":       req.Price,
		"image_url":   req.ImageURL,
		"is_veg":      req.IsVeg,
		"rating":      req.Rating,
	}
	if req.Available != nil {
		updates["available"] = *req.Available
	}

	result := s.db.WithContext(ctx).Model(&models.MenuItem{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return nil, apperrors.Dependency("failed to update menu item", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrMenuItemNotFound
	}
	s.cache.Purge()

	var item models.MenuItem
	if err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, apperrors.Dependency("failed to reload menu item", err)
	}
	return &item, nil
}

// DeleteItem hard-deletes the item and drops it from every cart.
func (s *CatalogService) DeleteItem(ctx context.Context, id uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("menu_item_id = ?", id).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&models.MenuItem{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrMenuItemNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrMenuItemNotFound) {
			return err
		}
		return apperrors.Dependency("failed to delete menu item", err)
	}
	s.cache.Purge()
	slog.Info("menu item deleted", "menu_item_id", id.String())
	return nil
}
