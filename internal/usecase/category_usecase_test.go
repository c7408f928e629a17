package usecase

import (
	"context"
	"path/filepath"
	"testing"

	"deenice_finds/internal/domain"
	"deenice_finds/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Phone Cases":         "phone-cases",
		"  Chargers & Cables": "chargers-cables",
		"AirPods!":            "airpods",
		"---":                 "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slugify(in), in)
	}
}

func TestCategoryUseCase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "categories.json")
	uc := NewCategoryUseCase(repository.NewCategoryRepository(repository.NewFileSnapshotter(path, quietLogger()), quietLogger()), quietLogger())

	_, err := uc.CreateCategory(ctx, &domain.Category{Name: "  "})
	assert.Equal(t, []string{"name"}, fieldsOf(t, err))

	created, err := uc.CreateCategory(ctx, &domain.Category{Name: "Phone Cases", Icon: "case"})
	require.NoError(t, err)
	assert.Equal(t, "phone-cases", created.ID)
	assert.Equal(t, 1, created.Order)

	_, err = uc.CreateCategory(ctx, &domain.Category{Name: "phone cases"})
	var conflict *domain.ConflictError
	assert.ErrorAs(t, err, &conflict)

	updated, err := uc.UpdateCategory(ctx, &domain.Category{ID: "phone-cases", Icon: "phone"})
	require.NoError(t, err)
	assert.Equal(t, "Phone Cases", updated.Name)
	assert.Equal(t, "phone", updated.Icon)

	require.NoError(t, uc.DeleteCategory(ctx, "phone-cases"))
	var nf *domain.NotFoundError
	assert.ErrorAs(t, uc.DeleteCategory(ctx, "phone-cases"), &nf)

	list, err := uc.ListCategories(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}
