package domain

import "context"

type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Icon  string `json:"icon,omitempty"`
	Order int    `json:"order"`
}

type CategoryRepository interface {
	Load(ctx context.Context) error
	CreateCategory(category *Category) (*Category, error)
	GetCategoryByID(id string) (*Category, error)
	UpdateCategory(category *Category) (*Category, error)
	DeleteCategory(id string) error
	ListCategories() []Category
}

type CategoryUseCase interface {
	CreateCategory(ctx context.Context, category *Category) (*Category, error)
	UpdateCategory(ctx context.Context, category *Category) (*Category, error)
	DeleteCategory(ctx context.Context, id string) error
	ListCategories(ctx context.Context) ([]Category, error)
}
