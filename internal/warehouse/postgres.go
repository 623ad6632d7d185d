package warehouse

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/drug-risk-ml-server/internal/domain"
)

// PostgresStore reads training inputs from the analytics warehouse.
// It only ever issues SELECTs; labeling and ingestion happen upstream.
type PostgresStore struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewPostgresStore creates a new warehouse store
func NewPostgresStore(db *pgxpool.Pool, logger *logrus.Logger) *PostgresStore {
	return &PostgresStore{
		db:  db,
		log: logger,
	}
}

// FetchPrescriptions retrieves labeled prescription rows. Rows whose
// clinical outcome has not been recorded yet are excluded because they
// cannot contribute a training label.
func (s *PostgresStore) FetchPrescriptions(ctx context.Context) ([]domain.PrescriptionRecord, error) {
	query := `
		SELECT upload_id, drug_name, variant_count, high_risk_variants,
			   risk_score, clinical_outcome, created_at
		FROM patient_prescriptions
		WHERE clinical_outcome IS NOT NULL AND clinical_outcome <> ''
		ORDER BY created_at`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		s.log.WithError(err).Error("Failed to fetch prescriptions")
		return nil, fmt.Errorf("fetching prescriptions: %w", err)
	}
	defer rows.Close()

	var records []domain.PrescriptionRecord
	for rows.Next() {
		var rec domain.PrescriptionRecord
		err := rows.Scan(
			&rec.UploadID,
			&rec.DrugName,
			&rec.VariantCount,
			&rec.HighRiskVariants,
			&rec.RiskScore,
			&rec.ClinicalOutcome,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning prescription row: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating prescription rows: %w", err)
	}

	s.log.WithField("count", len(records)).Info("Fetched labeled prescriptions")
	return records, nil
}

// FetchVariants retrieves annotated variant rows for aggregation.
func (s *PostgresStore) FetchVariants(ctx context.Context) ([]domain.VariantRecord, error) {
	query := `
		SELECT upload_id, gene, impact, variant_type,
			   COALESCE(clinical_significance, ''), COALESCE(drug_interactions, '')
		FROM annotated_variants
		ORDER BY upload_id, gene`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		s.log.WithError(err).Error("Failed to fetch variants")
		return nil, fmt.Errorf("fetching variants: %w", err)
	}
	defer rows.Close()

	var records []domain.VariantRecord
	for rows.Next() {
		var rec domain.VariantRecord
		err := rows.Scan(
			&rec.UploadID,
			&rec.Gene,
			&rec.Impact,
			&rec.VariantType,
			&rec.ClinicalSignificance,
			&rec.DrugInteractions,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning variant row: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating variant rows: %w", err)
	}

	s.log.WithField("count", len(records)).Info("Fetched annotated variants")
	return records, nil
}

// FetchInteractions retrieves the variant-drug interaction reference
// table. It is joined to variants on gene during feature engineering.
func (s *PostgresStore) FetchInteractions(ctx context.Context) ([]domain.InteractionRecord, error) {
	query := `
		SELECT variant_id, gene, COALESCE(drugs, ''),
			   COALESCE(significance, ''), COALESCE(clinical_evidence, '')
		FROM pharmgkb_variant_drug_interactions`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		s.log.WithError(err).Error("Failed to fetch drug interactions")
		return nil, fmt.Errorf("fetching interactions: %w", err)
	}
	defer rows.Close()

	var records []domain.InteractionRecord
	for rows.Next() {
		var rec domain.InteractionRecord
		err := rows.Scan(
			&rec.VariantID,
			&rec.Gene,
			&rec.Drugs,
			&rec.Significance,
			&rec.ClinicalEvidence,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning interaction row: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating interaction rows: %w", err)
	}

	s.log.WithField("count", len(records)).Info("Fetched drug interactions")
	return records, nil
}

// Health checks warehouse connectivity
func (s *PostgresStore) Health(ctx context.Context) error {
	return s.db.Ping(ctx)
}
