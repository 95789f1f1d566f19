package database

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMigrationFilesExist(t *testing.T) {
	migrationsDir := "../../migrations"

	// Check if migrations directory exists
	if _, err := os.Stat(migrationsDir); os.IsNotExist(err) {
		t.Fatal("Migrations directory does not exist")
	}

	// Expected migration files
	expectedMigrations := []string{
		"00001_create_catalog_tables.sql",
		"00002_create_promotions_table.sql",
		"00003_create_products_table.sql",
		"00004_create_variants_table.sql",
		"00005_create_cart_tables.sql",
		"00006_create_orders_table.sql",
		"00007_create_order_items_table.sql",
		"00008_create_loyalty_tables.sql",
		"00009_create_audit_entries_table.sql",
		"00010_create_updated_at_trigger.sql",
	}

	for _, migration := range expectedMigrations {
		path := filepath.Join(migrationsDir, migration)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			t.Errorf("Migration file %s does not exist", migration)
		}
	}
}

func TestMigrationFilesHaveUpAndDown(t *testing.T) {
	migrationsDir := "../../migrations"

	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		t.Fatalf("Failed to read migrations directory: %v", err)
	}

	sqlFileCount := 0
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}

		sqlFileCount++
		content, err := os.ReadFile(filepath.Join(migrationsDir, file.Name()))
		if err != nil {
			t.Errorf("Failed to read migration file %s: %v", file.Name(), err)
			continue
		}

		contentStr := string(content)

		// Check for goose Up directive
		if !strings.Contains(contentStr, "-- +goose Up") {
			t.Errorf("Migration file %s missing '-- +goose Up' directive", file.Name())
		}

		// Check for goose Down directive
		if !strings.Contains(contentStr, "-- +goose Down") {
			t.Errorf("Migration file %s missing '-- +goose Down' directive", file.Name())
		}

		// Check for StatementBegin/End
		if !strings.Contains(contentStr, "-- +goose StatementBegin") {
			t.Errorf("Migration file %s missing '-- +goose StatementBegin' directive", file.Name())
		}

		if !strings.Contains(contentStr, "-- +goose StatementEnd") {
			t.Errorf("Migration file %s missing '-- +goose StatementEnd' directive", file.Name())
		}
	}

	if sqlFileCount == 0 {
		t.Error("No SQL migration files found")
	}
}

func TestMigrationFilesCreateExpectedTables(t *testing.T) {
	migrationsDir := "../../migrations"

	expectedTables := map[string]string{
		"brands":               "00001_create_catalog_tables.sql",
		"categories":           "00001_create_catalog_tables.sql",
		"promotions":           "00002_create_promotions_table.sql",
		"products":             "00003_create_products_table.sql",
		"promotion_products":   "00003_create_products_table.sql",
		"variants":             "00004_create_variants_table.sql",
		"carts":                "00005_create_cart_tables.sql",
		"cart_lines":           "00005_create_cart_tables.sql",
		"orders":               "00006_create_orders_table.sql",
		"order_items":          "00007_create_order_items_table.sql",
		"loyalty_accounts":     "00008_create_loyalty_tables.sql",
		"loyalty_transactions": "00008_create_loyalty_tables.sql",
		"audit_entries":        "00009_create_audit_entries_table.sql",
	}

	for tableName, migrationFile := range expectedTables {
		path := filepath.Join(migrationsDir, migrationFile)
		content, err := os.ReadFile(path)
		if err != nil {
			t.Errorf("Failed to read migration file %s: %v", migrationFile, err)
			continue
		}

		contentStr := string(content)

		// Check if migration creates the table
		createTableStmt := "CREATE TABLE IF NOT EXISTS " + tableName
		if !strings.Contains(contentStr, createTableStmt) {
			t.Errorf("Migration file %s does not create table %s", migrationFile, tableName)
		}

		// Check if migration has drop table in down section
		dropTableStmt := "DROP TABLE IF EXISTS " + tableName
		if !strings.Contains(contentStr, dropTableStmt) {
			t.Errorf("Migration file %s does not drop table %s in down section", migrationFile, tableName)
		}
	}
}

func TestProductsTableHasRequiredColumns(t *testing.T) {
	migrationsDir := "../../migrations"
	path := filepath.Join(migrationsDir, "00003_create_products_table.sql")

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read products migration: %v", err)
	}

	contentStr := string(content)
	requiredColumns := []string{
		"id UUID PRIMARY KEY",
		"kind VARCHAR",
		"base_price NUMERIC(10, 2)",
		"discount_percentage INTEGER",
		"discount_price NUMERIC(10, 2)",
		"discount_start_at TIMESTAMPTZ",
		"discount_end_at TIMESTAMPTZ",
		"discount_source UUID REFERENCES promotions(id)",
		"stock_quantity INTEGER",
		"in_stock BOOLEAN",
		"updated_at TIMESTAMPTZ",
	}

	for _, column := range requiredColumns {
		if !strings.Contains(contentStr, column) {
			t.Errorf("Products table missing required column definition: %s", column)
		}
	}

	if !strings.Contains(contentStr, "CHECK (stock_quantity >= 0)") {
		t.Error("Products table missing non-negative stock constraint")
	}
}

func TestVariantsTableAllowsOneDefault(t *testing.T) {
	migrationsDir := "../../migrations"
	path := filepath.Join(migrationsDir, "00004_create_variants_table.sql")

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read variants migration: %v", err)
	}

	if !strings.Contains(string(content), "EXCLUDE USING btree (product_id WITH =) WHERE (is_default)") {
		t.Error("Variants table missing exclusion constraint on the default flag")
	}
	// checked at the end of each statement so violations reach the statement that caused them
	if !strings.Contains(string(content), "DEFERRABLE INITIALLY IMMEDIATE") {
		t.Error("Variants default constraint must be checked per statement, not at commit")
	}
}

func TestOrdersTableHasStatusConstraint(t *testing.T) {
	migrationsDir := "../../migrations"
	path := filepath.Join(migrationsDir, "00006_create_orders_table.sql")

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read orders migration: %v", err)
	}

	contentStr := string(content)

	requiredStatuses := []string{"pending", "paid", "processing", "shipped", "delivered", "cancelled"}
	for _, status := range requiredStatuses {
		if !strings.Contains(contentStr, "'"+status+"'") {
			t.Errorf("Orders table status constraint missing value: %s", status)
		}
	}

	for _, column := range []string{"loyalty_awarded BOOLEAN", "loyalty_refunded BOOLEAN", "CHECK (total >= 0)"} {
		if !strings.Contains(contentStr, column) {
			t.Errorf("Orders table missing definition: %s", column)
		}
	}
}

func TestLoyaltyAccountsBalanceIsNonNegative(t *testing.T) {
	migrationsDir := "../../migrations"
	path := filepath.Join(migrationsDir, "00008_create_loyalty_tables.sql")

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read loyalty migration: %v", err)
	}

	if !strings.Contains(string(content), "balance INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0)") {
		t.Error("Loyalty accounts table missing non-negative balance constraint")
	}
}
