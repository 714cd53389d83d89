package repository

import (
	"context"

	"github.com/trendflow-go/internal/domain/catalog"
	"github.com/trendflow-go/pkg/database"
)

// CatalogRepository is the read-only window into the relational product
// catalog. The trending engine never writes through it.
type CatalogRepository struct {
	db *database.DB
}

func NewCatalogRepository(db *database.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// GetProductsByIDs resolves products with their brand and category names
// denormalized for response assembly. Ids that no longer resolve are simply
// absent from the result.
func (r *CatalogRepository) GetProductsByIDs(ctx context.Context, ids []int) ([]catalog.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var products []catalog.Product
	err := r.db.WithContext(ctx).
		Table("products").
		Select(`products.id, products.name, products.slug,
			brands.name AS brand_name, brands.slug AS brand_slug,
			products.category_id, categories.name AS category_name, categories.slug AS category_slug,
			products.images, products.msrp_price`).
		Joins("JOIN brands ON brands.id = products.brand_id").
		Joins("JOIN categories ON categories.id = products.category_id").
		Where("products.id IN ?", ids).
		Where("products.is_active = ?", true).
		Find(&products).Error
	if err != nil {
		return nil, err
	}

	return products, nil
}

// GetCategoriesOf returns the category id for each resolvable product id.
func (r *CatalogRepository) GetCategoriesOf(ctx context.Context, ids []int) (map[int]int, error) {
	if len(ids) == 0 {
		return map[int]int{}, nil
	}

	type row struct {
		ID         int
		CategoryID int
	}

	var rows []row
	err := r.db.WithContext(ctx).
		Table("products").
		Select("id, category_id").
		Where("id IN ?", ids).
		Where("is_active = ?", true).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	categories := make(map[int]int, len(rows))
	for _, row := range rows {
		categories[row.ID] = row.CategoryID
	}
	return categories, nil
}

// ListActiveCategories returns all categories eligible for the per-category
// trending breakdown.
func (r *CatalogRepository) ListActiveCategories(ctx context.Context) ([]catalog.Category, error) {
	var categories []catalog.Category
	err := r.db.WithContext(ctx).
		Table("categories").
		Where("is_active = ?", true).
		Order("name").
		Find(&categories).Error
	if err != nil {
		return nil, err
	}

	return categories, nil
}
