package dto

import "github.com/foodcourt/storefront-api/internal/models"

type MenuQuery struct {
	Category string `query:"category" validate:"max=80"`
	Page     int    `query:"page" validate:"gte=0"`
	Limit    int    `query:"limit" validate:"gte=0,lte=100"`
}

type SearchQuery struct {
	Q     string `query:"q" validate:"required,min=2,max=100"`
	Limit int    `query:"limit" validate:"gte=0,lte=100"`
}

type MenuPage struct {
	Items []models.MenuItem `json:"items"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
	Total int64             `json:"total"`
}

type MenuItemRequest struct {
	Name        string  `json:"name" validate:"required,max=150"`
	Description string  `json:"description" validate:"max=2000"`
	Category    string  `json:"category" validate:"required,max=80"`
	Price       int64   `json:"price" validate:"required,gt=0"`
	ImageURL    string  `json:"image_url" validate:"omitempty,url,max=500"`
	IsVeg       bool    `json:"is_veg"`
	Available   *bool   `json:"available"`
	Rating      float64 `json:"rating" validate:"gte=0,lte=5"`
}
