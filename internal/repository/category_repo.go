package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"deenice_finds/internal/domain"

	"github.com/sirupsen/logrus"
)

type categoryRepository struct {
	mu         sync.RWMutex
	categories []domain.Category
	snapshot   Snapshotter
	log        *logrus.Logger
}

func NewCategoryRepository(snapshot Snapshotter, logger *logrus.Logger) domain.CategoryRepository {
	return &categoryRepository{
		categories: []domain.Category{},
		snapshot:   snapshot,
		log:        logger,
	}
}

func (r *categoryRepository) Load(ctx context.Context) error {
	data, err := r.snapshot.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrSnapshotNotFound) {
			r.log.Infof("No persisted categories at %s, starting empty", r.snapshot.Backend())
			return nil
		}
		return &domain.PersistenceError{Op: "load", Err: err}
	}
	var categories []domain.Category
	if err := json.Unmarshal(data, &categories); err != nil {
		return &domain.PersistenceError{Op: "decode", Err: err}
	}
	sortCategories(categories)

	r.mu.Lock()
	r.categories = categories
	r.mu.Unlock()
	r.log.Infof("Loaded %d categories from %s", len(categories), r.snapshot.Backend())
	return nil
}

func sortCategories(categories []domain.Category) {
	sort.SliceStable(categories, func(i, j int) bool {
		if categories[i].Order != categories[j].Order {
			return categories[i].Order < categories[j].Order
		}
		return categories[i].ID < categories[j].ID
	})
}

// persist must be called with r.mu held.
func (r *categoryRepository) persist() error {
	data, err := json.MarshalIndent(r.categories, "", "  ")
	if err != nil {
		return &domain.PersistenceError{Op: "encode", Err: err}
	}
	if err := r.snapshot.Save(context.Background(), data); err != nil {
		r.log.Errorf("Failed to persist categories: %v", err)
		return &domain.PersistenceError{Op: "save", Err: err}
	}
	return nil
}

func (r *categoryRepository) indexOf(id string) int {
	for i := range r.categories {
		if r.categories[i].ID == id {
			return i
		}
	}
	return -1
}

func (r *categoryRepository) CreateCategory(category *domain.Category) (*domain.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexOf(category.ID) >= 0 {
		r.log.Warnf("Attempted to create category with duplicate id: %s", category.ID)
		return nil, &domain.ConflictError{Message: fmt.Sprintf("category with id '%s' already exists", category.ID)}
	}
	if category.Order == 0 {
		for _, c := range r.categories {
			if c.Order >= category.Order {
				category.Order = c.Order + 1
			}
		}
		if category.Order == 0 {
			category.Order = 1
		}
	}
	r.categories = append(r.categories, *category)
	sortCategories(r.categories)

	r.log.Infof("Category created successfully with ID: %s, Name: %s", category.ID, category.Name)
	out := *category
	return &out, r.persist()
}

func (r *categoryRepository) GetCategoryByID(id string) (*domain.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i := r.indexOf(id)
	if i < 0 {
		return nil, &domain.NotFoundError{Resource: "category", ID: id}
	}
	out := r.categories[i]
	return &out, nil
}

func (r *categoryRepository) UpdateCategory(category *domain.Category) (*domain.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(category.ID)
	if i < 0 {
		r.log.Warnf("Category with ID %s not found for update", category.ID)
		return nil, &domain.NotFoundError{Resource: "category", ID: category.ID}
	}
	existing := &r.categories[i]
	if category.Name != "" {
		existing.Name = category.Name
	}
	if category.Icon != "" {
		existing.Icon = category.Icon
	}
	if category.Order != 0 {
		existing.Order = category.Order
	}
	out := *existing
	sortCategories(r.categories)

	r.log.Infof("Category updated successfully with ID: %s", out.ID)
	return &out, r.persist()
}

func (r *categoryRepository) DeleteCategory(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		r.log.Warnf("Attempted to delete non-existent category ID %s", id)
		return &domain.NotFoundError{Resource: "category", ID: id}
	}
	r.categories = append(r.categories[:i], r.categories[i+1:]...)
	r.log.Infof("Category deleted successfully with ID: %s", id)
	return r.persist()
}

func (r *categoryRepository) ListCategories() []domain.Category {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.Category{}, r.categories...)
}
