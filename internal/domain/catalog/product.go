package catalog

import "time"

// Product is the read-only projection of the catalog store used to hydrate
// ranking results. The brand and category columns are denormalized by the
// repository join; this service never writes any of them.
type Product struct {
	ID           int       `json:"id" gorm:"primaryKey"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	BrandName    string    `json:"brandName"`
	BrandSlug    string    `json:"brandSlug"`
	CategoryID   int       `json:"categoryId"`
	CategoryName string    `json:"categoryName"`
	CategorySlug string    `json:"categorySlug"`
	Images       []string  `json:"images" gorm:"serializer:json"`
	MSRPPrice    float64   `json:"msrpPrice"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Category struct {
	ID       int    `json:"id" gorm:"primaryKey"`
	Slug     string `json:"slug"`
	Name     string `json:"name"`
	IsActive bool   `json:"isActive"`
}
