package repository

import (
	"context"
	"database/sql"
	"log"
	"testing"
	"time"

	"perfume-store/internal/database"
	"perfume-store/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var testDB *sql.DB

func setupTestDB() (func(context.Context, ...testcontainers.TerminateOption) error, error) {
	var (
		dbName = "testdb"
		dbPwd  = "password"
		dbUser = "user"
	)

	dbContainer, err := postgres.Run(
		context.Background(),
		"postgres:15",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPwd),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, err
	}

	connStr, err := dbContainer.ConnectionString(context.Background(), "sslmode=disable")
	if err != nil {
		return dbContainer.Terminate, err
	}

	testDB, err = sql.Open("pgx", connStr)
	if err != nil {
		return dbContainer.Terminate, err
	}

	if err := database.RunMigrations(context.Background(), testDB, "../../migrations", zap.NewNop()); err != nil {
		return dbContainer.Terminate, err
	}

	return dbContainer.Terminate, nil
}

func TestMain(m *testing.M) {
	teardown, err := setupTestDB()
	if err != nil {
		log.Fatalf("could not start postgres container: %v", err)
	}

	m.Run()

	if teardown != nil {
		if err := teardown(context.Background()); err != nil {
			log.Fatalf("could not teardown postgres container: %v", err)
		}
	}
}

type fixture struct {
	brand    *domain.Brand
	category *domain.Category
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		brand: &domain.Brand{
			ID:        uuid.New(),
			Name:      "Brand " + uuid.NewString(),
			CreatedAt: time.Now().UTC(),
		},
		category: &domain.Category{
			ID:        uuid.New(),
			Name:      "Category " + uuid.NewString(),
			Kind:      domain.KindPerfume,
			CreatedAt: time.Now().UTC(),
		},
	}

	if err := NewBrandRepository(testDB).Create(ctx, f.brand); err != nil {
		t.Fatalf("Failed to create brand: %v", err)
	}
	if err := NewCategoryRepository(testDB).Create(ctx, f.category); err != nil {
		t.Fatalf("Failed to create category: %v", err)
	}

	return f
}

func (f *fixture) product(t *testing.T, price string, stock int) *domain.Product {
	t.Helper()

	now := time.Now().UTC().Truncate(time.Microsecond)
	id := uuid.New()
	p := &domain.Product{
		ID:            id,
		Kind:          domain.KindPerfume,
		Name:          "Product " + id.String()[:8],
		Slug:          "product-" + id.String(),
		SKU:           "SKU-" + id.String()[:8],
		BrandID:       f.brand.ID,
		CategoryID:    f.category.ID,
		BasePrice:     decimal.RequireFromString(price),
		Size:          50,
		StockQuantity: stock,
		InStock:       stock > 0,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := NewProductRepository(testDB).Create(context.Background(), p); err != nil {
		t.Fatalf("Failed to create product: %v", err)
	}

	return p
}
