package services

import (
	"context"
	"testing"
	"time"

	"github.com/foodcourt/storefront-api/internal/apperrors"
	"github.com/foodcourt/storefront-api/internal/cache"
	"github.com/foodcourt/storefront-api/internal/dto"
	"github.com/foodcourt/storefront-api/internal/models"
	"github.com/foodcourt/storefront-api/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedMenu(t *testing.T, db *gorm.DB) []models.MenuItem {
	t.Helper()
	items := []models.MenuItem{
		{Name: "Paneer Tikka", Description: "Charred cottage cheese", Category: "Starters", Price: 24900, IsVeg: true, Available: true, Rating: 4.5},
		{Name: "Chicken 65", Description: "Spicy fried chicken", Category: "Starters", Price: 27900, Available: true, Rating: 4.2},
		{Name: "Masala Dosa", Description: "Crisp rice crepe with potato", Category: "Mains", Price: 14900, IsVeg: true, Available: true, Rating: 4.8},
		{Name: "Mutton Biryani", Description: "Slow cooked rice", Category: "Mains", Price: 39900, Available: false, Rating: 4.9},
	}
	for i := range items {
		require.NoError(t, db.Create(&items[i]).Error)
	}
	return items
}

func newCatalog(t *testing.T) (*CatalogService, *gorm.DB, []models.MenuItem) {
	t.Helper()
	db := testutil.NewDB(t)
	items := seedMenu(t, db)
	c, err := cache.NewTTLCache(time.Minute, 100)
	require.NoError(t, err)
	return NewCatalogService(db, c), db, items
}

func TestListMenuOnlyAvailable(t *testing.T) {
	svc, _, _ := newCatalog(t)

	page, err := svc.ListMenu(context.Background(), &dto.MenuQuery{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Total)
	assert.Len(t, page.Items, 3)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.Limit)
	for _, it := range page.Items {
		assert.True(t, it.Available)
	}
}

func TestListMenuCategoryAndPagination(t *testing.T) {
	svc, _, _ := newCatalog(t)
	ctx := context.Background()

	page, err := svc.ListMenu(ctx, &dto.MenuQuery{Category: "starters", Page: 1, Limit: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Chicken 65", page.Items[0].Name)

	page, err = svc.ListMenu(ctx, &dto.MenuQuery{Category: "Starters", Page: 2, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Paneer Tikka", page.Items[0].Name)

	_, err = svc.ListMenu(ctx, &dto.MenuQuery{Limit: 101})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestSearch(t *testing.T) {
	svc, _, _ := newCatalog(t)
	ctx := context.Background()

	items, err := svc.Search(ctx, &dto.SearchQuery{Q: "RICE"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Masala Dosa", items[0].Name)

	items, err = svc.Search(ctx, &dto.SearchQuery{Q: "100%"})
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = svc.Search(ctx, &dto.SearchQuery{Q: "a"})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestCategories(t *testing.T) {
	svc, _, _ := newCatalog(t)

	categories, err := svc.Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Mains", "Starters"}, categories)
}

func TestGetItem(t *testing.T) {
	svc, _, items := newCatalog(t)
	ctx := context.Background()

	item, err := svc.GetItem(ctx, items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Paneer Tikka", item.Name)

	_, err = svc.GetItem(ctx, items[3].ID)
	assert.ErrorIs(t, err, ErrMenuItemNotFound)

	_, err = svc.GetItem(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrMenuItemNotFound)
}

func TestAdminWritesPurgeCache(t *testing.T) {
	svc, _, items := newCatalog(t)
	ctx := context.Background()

	page, err := svc.ListMenu(ctx, &dto.MenuQuery{})
	require.NoError(t, err)
	require.EqualValues(t, 3, page.Total)

	created, err := svc.CreateItem(ctx, &dto.MenuItemRequest{Name: "Gulab Jamun", Category: "Desserts", Price: 9900, IsVeg: true})
	require.NoError(t, err)
	assert.True(t, created.Available)

	page, err = svc.ListMenu(ctx, &dto.MenuQuery{})
	require.NoError(t, err)
	assert.EqualValues(t, 4, page.Total)

	hidden := false
	_, err = svc.UpdateItem(ctx, items[0].ID, &dto.MenuItemRequest{Name: "Paneer Tikka", Category: "Starters", Price: 25900, Available: &hidden})
	require.NoError(t, err)

	page, err = svc.ListMenu(ctx, &dto.MenuQuery{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Total)

	require.NoError(t, svc.DeleteItem(ctx, created.ID))
	assert.ErrorIs(t, svc.DeleteItem(ctx, created.ID), ErrMenuItemNotFound)

	_, err = svc.UpdateItem(ctx, uuid.New(), &dto.MenuItemRequest{Name: "x", Category: "y", Price: 1})
	assert.ErrorIs(t, err, ErrMenuItemNotFound)
}
