package domain

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupTestDB creates a PostgreSQL testcontainer for testing
func setupTestDB(t *testing.T) *gorm.DB {
	if testing.Short() {
		t.Skip("skipping postgres-backed test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Fatalf("failed to terminate postgres container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	db, err := gorm.Open(pgdriver.Open(connStr), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	if err := db.AutoMigrate(AllModels()...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

func TestTableNames(t *testing.T) {
	assert.Equal(t, "ingestion_batches", IngestionBatch{}.TableName())
	assert.Equal(t, "document_hashes", DocumentHash{}.TableName())
	assert.Equal(t, "clients", Client{}.TableName())
	assert.Equal(t, "invoices", Invoice{}.TableName())
	assert.Equal(t, "products", Product{}.TableName())
	assert.Equal(t, "purchases", Purchase{}.TableName())
	assert.Equal(t, "ingestion_errors", IngestionError{}.TableName())
}

func TestBatch_IsValidStatus(t *testing.T) {
	tests := []struct {
		status string
		valid  bool
	}{
		{"running", true},
		{"completed", true},
		{"cancelled", true},
		{"failed", true},
		{"extracting", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidStatus(tt.status))
		})
	}
}

func TestBatch_Finish(t *testing.T) {
	b := &IngestionBatch{Status: BatchStatusRunning}
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	b.Finish(BatchStatusCompleted, at)

	assert.Equal(t, BatchStatusCompleted, b.Status)
	require.NotNil(t, b.CompletedAt)
	assert.Equal(t, at, *b.CompletedAt)
}

func TestEntitySet_LockKeys(t *testing.T) {
	set := &EntitySet{
		Client:   Client{ID: "CLT_Carol_Potter"},
		Invoice:  Invoice{ID: "2018-0001-654"},
		Products: []Product{{ID: "PROD_desk_lamp_led"}, {ID: "PROD_coffee_mug"}},
	}

	assert.Equal(t, []string{
		"clients:CLT_Carol_Potter",
		"invoices:2018-0001-654",
		"products:PROD_desk_lamp_led",
		"products:PROD_coffee_mug",
	}, set.LockKeys())
}

func TestIngestionBatch_BeforeCreate(t *testing.T) {
	db := setupTestDB(t)

	batch := &IngestionBatch{Source: "data/files"}
	assert.Equal(t, uuid.Nil, batch.ID)

	require.NoError(t, db.Create(batch).Error)
	assert.NotEqual(t, uuid.Nil, batch.ID)
	assert.Equal(t, BatchStatusRunning, batch.Status)
}

func TestIngestionError_BeforeCreateStampsTime(t *testing.T) {
	db := setupTestDB(t)

	rec := &IngestionError{SourceFile: "FAC_2018_0001-654.png", Message: "dates do not match"}
	require.NoError(t, db.Create(rec).Error)

	assert.NotEqual(t, uuid.Nil, rec.ID)
	assert.False(t, rec.OccurredAt.IsZero())
}

func TestPurchase_RequiresParents(t *testing.T) {
	db := setupTestDB(t)

	orphan := &Purchase{ProductID: "PROD_x", ClientID: "CLT_x", InvoiceID: "2018-0001-1", Quantity: 1}
	assert.Error(t, db.Create(orphan).Error, "foreign keys must reject a purchase without parents")
}

func TestPurchase_CompositeKeyUniqueness(t *testing.T) {
	db := setupTestDB(t)

	client := &Client{ID: "CLT_Carol_Potter", Name: "Carol Potter", Birthdate: time.Date(1980, 5, 20, 0, 0, 0, 0, time.UTC)}
	invoice := &Invoice{ID: "2018-0001-654", IssuedAt: time.Now().UTC(), Total: decimal.RequireFromString("10.50")}
	product := &Product{ID: "PROD_coffee_mug", Name: "coffee mug", UnitPrice: decimal.RequireFromString("10.50")}
	require.NoError(t, db.Create(client).Error)
	require.NoError(t, db.Create(invoice).Error)
	require.NoError(t, db.Create(product).Error)

	first := &Purchase{ProductID: product.ID, ClientID: client.ID, InvoiceID: invoice.ID, Quantity: 1}
	require.NoError(t, db.Create(first).Error)

	second := &Purchase{ProductID: product.ID, ClientID: client.ID, InvoiceID: invoice.ID, Quantity: 2}
	assert.Error(t, db.Create(second).Error, "should fail due to composite primary key")

	var stored Invoice
	require.NoError(t, db.First(&stored, "id = ?", invoice.ID).Error)
	assert.True(t, stored.Total.Equal(decimal.RequireFromString("10.50")))
}
