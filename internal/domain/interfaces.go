package domain

import (
	"context"
	"time"
)

// WarehouseStore fetches the three relational record sets training
// consumes. Implementations must treat the warehouse as read-only.
type WarehouseStore interface {
	FetchPrescriptions(ctx context.Context) ([]PrescriptionRecord, error)
	FetchVariants(ctx context.Context) ([]VariantRecord, error)
	FetchInteractions(ctx context.Context) ([]InteractionRecord, error)
	Health(ctx context.Context) error
}

// AuditStore records per-request prediction audit rows, including
// which features were defaulted rather than supplied.
type AuditStore interface {
	Record(ctx context.Context, entry *AuditEntry) error
	Close() error
}

// AuditEntry is one prediction audit row.
type AuditEntry struct {
	ID                int64          `json:"id"`
	RequestID         string         `json:"request_id"`
	DrugName          string         `json:"drug_name"`
	Mode              ModelMode      `json:"mode"`
	Probability       float64        `json:"probability"`
	RiskLevel         RiskLevel      `json:"risk_level"`
	Confidence        ConfidenceBand `json:"confidence"`
	DefaultedFeatures []string       `json:"defaulted_features"`
	CreatedAt         time.Time      `json:"created_at"`
}

// ConfigManager defines the interface for configuration management.
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetWarehouseConfig() *WarehouseConfig
	GetModelConfig() *ModelConfig
	GetRiskConfig() *RiskConfig
	Validate() error
	Reload() error
}
