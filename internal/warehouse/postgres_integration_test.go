package warehouse

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/drug-risk-ml-server/internal/domain"
)

// generateTestPassword creates a secure random password for test databases
func generateTestPassword() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "test_fallback_password_123"
	}
	return "test_" + hex.EncodeToString(bytes)
}

func setupTestWarehouse(t *testing.T) (*DB, func()) {
	if testing.Short() {
		t.Skip("Skipping warehouse integration test in short mode")
	}

	ctx := context.Background()
	testPassword := generateTestPassword()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword(testPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Skipf("Skipping: could not start PostgreSQL container: %v", err)
	}

	host, err := pgContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel) // Reduce noise in tests

	config := &domain.WarehouseConfig{
		Host:            host,
		Port:            port.Int(),
		Database:        "testdb",
		Username:        "testuser",
		Password:        testPassword,
		SSLMode:         "disable",
		MaxConns:        10,
		MinConns:        2,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
	}

	db, err := NewConnection(ctx, config, logger)
	if err != nil {
		t.Fatalf("Failed to create warehouse connection: %v", err)
	}

	// Create the warehouse tables training reads from
	schema := []string{
		`CREATE TABLE patient_prescriptions (
			upload_id TEXT NOT NULL,
			drug_name TEXT NOT NULL,
			variant_count INT NOT NULL DEFAULT 0,
			high_risk_variants INT NOT NULL DEFAULT 0,
			risk_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			clinical_outcome TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE annotated_variants (
			upload_id TEXT NOT NULL,
			gene TEXT NOT NULL,
			impact TEXT NOT NULL,
			variant_type TEXT NOT NULL,
			clinical_significance TEXT,
			drug_interactions TEXT
		)`,
		`CREATE TABLE pharmgkb_variant_drug_interactions (
			variant_id TEXT NOT NULL,
			gene TEXT NOT NULL,
			drugs TEXT,
			significance TEXT,
			clinical_evidence TEXT
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			t.Fatalf("Failed to create test schema: %v", err)
		}
	}

	cleanup := func() {
		db.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate PostgreSQL container: %v", err)
		}
	}

	return db, cleanup
}

func TestPostgresStoreFetchPrescriptions(t *testing.T) {
	db, cleanup := setupTestWarehouse(t)
	defer cleanup()

	ctx := context.Background()
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO patient_prescriptions
			(upload_id, drug_name, variant_count, high_risk_variants, risk_score, clinical_outcome)
		VALUES
			('u1', 'WARFARIN', 12, 3, 0.75, 'HIGH_RISK'),
			('u2', 'CLOPIDOGREL', 4, 0, 0.20, 'NORMAL'),
			('u3', 'SIMVASTATIN', 7, 1, 0.40, NULL)`)
	if err != nil {
		t.Fatalf("Failed to seed prescriptions: %v", err)
	}

	store := NewPostgresStore(db.Pool, logrus.New())
	recs, err := store.FetchPrescriptions(ctx)
	if err != nil {
		t.Fatalf("FetchPrescriptions failed: %v", err)
	}

	// The unlabeled row (NULL outcome) must be excluded.
	if len(recs) != 2 {
		t.Fatalf("Expected 2 labeled prescriptions, got %d", len(recs))
	}
	if recs[0].DrugName != "WARFARIN" || recs[0].ClinicalOutcome != "HIGH_RISK" {
		t.Errorf("Unexpected first record: %+v", recs[0])
	}
}

func TestPostgresStoreFetchVariantsAndInteractions(t *testing.T) {
	db, cleanup := setupTestWarehouse(t)
	defer cleanup()

	ctx := context.Background()
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO annotated_variants (upload_id, gene, impact, variant_type, clinical_significance, drug_interactions)
		VALUES ('u1', 'CYP2C9', 'HIGH', 'SNV', 'Pathogenic', 'warfarin'),
		       ('u1', 'VKORC1', 'MODERATE', 'SNV', NULL, NULL)`)
	if err != nil {
		t.Fatalf("Failed to seed variants: %v", err)
	}

	_, err = db.Pool.Exec(ctx, `
		INSERT INTO pharmgkb_variant_drug_interactions (variant_id, gene, drugs, significance, clinical_evidence)
		VALUES ('rs1799853', 'CYP2C9', 'warfarin', 'High', 'Level 1A')`)
	if err != nil {
		t.Fatalf("Failed to seed interactions: %v", err)
	}

	store := NewPostgresStore(db.Pool, logrus.New())

	variants, err := store.FetchVariants(ctx)
	if err != nil {
		t.Fatalf("FetchVariants failed: %v", err)
	}
	if len(variants) != 2 {
		t.Fatalf("Expected 2 variants, got %d", len(variants))
	}
	// NULL columns come back as empty strings, not scan errors.
	if variants[1].ClinicalSignificance != "" {
		t.Errorf("Expected empty significance, got %q", variants[1].ClinicalSignificance)
	}

	interactions, err := store.FetchInteractions(ctx)
	if err != nil {
		t.Fatalf("FetchInteractions failed: %v", err)
	}
	if len(interactions) != 1 {
		t.Fatalf("Expected 1 interaction, got %d", len(interactions))
	}
	if interactions[0].Gene != "CYP2C9" || interactions[0].Significance != "High" {
		t.Errorf("Unexpected interaction: %+v", interactions[0])
	}

	if err := store.Health(ctx); err != nil {
		t.Errorf("Health check failed: %v", err)
	}
}
