package usecase

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"deenice_finds/internal/domain"

	"github.com/sirupsen/logrus"
)

type categoryUseCase struct {
	categoryRepo domain.CategoryRepository
	log          *logrus.Logger
}

func NewCategoryUseCase(repo domain.CategoryRepository, logger *logrus.Logger) domain.CategoryUseCase {
	return &categoryUseCase{
		categoryRepo: repo,
		log:          logger,
	}
}

// Slugify lower-cases name and joins its letter/digit runs with dashes.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	return b.String()
}

// nonFatal drops persistence errors; the change is already applied in memory.
func (uc *categoryUseCase) nonFatal(err error) error {
	var perr *domain.PersistenceError
	if errors.As(err, &perr) {
		uc.log.Errorf("Use Case: Category change kept in memory only: %v", err)
		return nil
	}
	return err
}

func (uc *categoryUseCase) CreateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error) {
	category.Name = strings.TrimSpace(category.Name)
	if category.Name == "" {
		uc.log.Warn("Use Case: Attempted to create category with empty name")
		return nil, domain.NewValidationError("name", "Category name is required")
	}
	category.ID = Slugify(category.Name)
	if category.ID == "" {
		return nil, domain.NewValidationError("name", "Category name must contain letters or digits")
	}

	uc.log.Infof("Use Case: Attempting to create category '%s'", category.Name)
	created, err := uc.categoryRepo.CreateCategory(category)
	if err = uc.nonFatal(err); err != nil {
		uc.log.Warnf("Use Case: Repository failed to create category '%s': %v", category.Name, err)
		return nil, err
	}
	return created, nil
}

func (uc *categoryUseCase) UpdateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error) {
	if category.ID == "" {
		return nil, domain.NewValidationError("id", "Category id is required")
	}
	category.Name = strings.TrimSpace(category.Name)

	uc.log.Infof("Use Case: Attempting to update category %s", category.ID)
	updated, err := uc.categoryRepo.UpdateCategory(category)
	if err = uc.nonFatal(err); err != nil {
		uc.log.Warnf("Use Case: Repository failed to update category %s: %v", category.ID, err)
		return nil, err
	}
	return updated, nil
}

func (uc *categoryUseCase) DeleteCategory(ctx context.Context, id string) error {
	uc.log.Infof("Use Case: Attempting to delete category %s", id)
	if err := uc.nonFatal(uc.categoryRepo.DeleteCategory(id)); err != nil {
		uc.log.Warnf("Use Case: Repository failed to delete category %s: %v", id, err)
		return err
	}
	return nil
}

func (uc *categoryUseCase) ListCategories(ctx context.Context) ([]domain.Category, error) {
	categories := uc.categoryRepo.ListCategories()
	uc.log.Debugf("Use Case: Retrieved %d categories", len(categories))
	return categories, nil
}
