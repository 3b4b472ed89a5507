package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	`CREATE EXTENSION IF NOT EXISTS "pgcrypto";`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'transfer_status') THEN
			CREATE TYPE transfer_status AS ENUM ('PENDING', 'CONFIRMED', 'DISPUTED', 'REJECTED', 'CANCELLED');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'origin_kind') THEN
			CREATE TYPE origin_kind AS ENUM ('FARMER', 'SUPPLIER', 'PRODUCTION_UNIT');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'risk_level') THEN
			CREATE TYPE risk_level AS ENUM ('NONE', 'LOW', 'MEDIUM', 'HIGH');
		END IF;
	END
	$$;`,
	`CREATE TABLE IF NOT EXISTS suppliers (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		name VARCHAR(255) NOT NULL,
		type VARCHAR(64) NOT NULL,
		country_code VARCHAR(2),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS production_units (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		farmer_id UUID NOT NULL,
		name VARCHAR(255) NOT NULL,
		verified BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS batches (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		supplier_id UUID NOT NULL REFERENCES suppliers(id),
		commodity_type VARCHAR(128) NOT NULL,
		country_code VARCHAR(2) NOT NULL,
		quantity_kg NUMERIC(18,3) NOT NULL,
		risk_level risk_level,
		risk_rationale TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS batch_production_units (
		batch_id UUID NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
		production_unit_id UUID NOT NULL REFERENCES production_units(id),
		PRIMARY KEY (batch_id, production_unit_id)
	);`,
	`CREATE TABLE IF NOT EXISTS batch_documents (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		batch_id UUID NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
		document_type VARCHAR(64) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_batch_documents_batch_id ON batch_documents (batch_id);`,
	`CREATE TABLE IF NOT EXISTS deforestation_alerts (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		production_unit_id UUID NOT NULL REFERENCES production_units(id),
		severity VARCHAR(16) NOT NULL,
		detected_at TIMESTAMPTZ NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_unit_detected ON deforestation_alerts (production_unit_id, detected_at);`,
	`CREATE TABLE IF NOT EXISTS transfers (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		batch_id UUID REFERENCES batches(id),
		origin_kind origin_kind NOT NULL,
		origin_id UUID NOT NULL,
		sender_name VARCHAR(255) NOT NULL,
		sender_type VARCHAR(64) NOT NULL,
		receiver_supplier_id UUID NOT NULL REFERENCES suppliers(id),
		receiver_name VARCHAR(255) NOT NULL,
		receiver_type VARCHAR(64) NOT NULL,
		commodity_type VARCHAR(128) NOT NULL,
		quality_grade VARCHAR(64),
		sender_quantity_kg NUMERIC(18,3) NOT NULL CHECK (sender_quantity_kg > 0),
		receiver_quantity_kg NUMERIC(18,3),
		status transfer_status NOT NULL DEFAULT 'PENDING',
		sender_confirmed_at TIMESTAMPTZ NOT NULL,
		receiver_confirmed_at TIMESTAMPTZ,
		sender_notes TEXT,
		receiver_notes TEXT,
		dispute_reason TEXT,
		ledger_tx_ref VARCHAR(128),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_transfers_receiver ON transfers (receiver_supplier_id);`,
	`CREATE INDEX IF NOT EXISTS idx_transfers_origin ON transfers (origin_kind, origin_id);`,
	`CREATE INDEX IF NOT EXISTS idx_transfers_batch ON transfers (batch_id) WHERE batch_id IS NOT NULL;`,
	`CREATE INDEX IF NOT EXISTS idx_transfers_status ON transfers (status);`,
	`CREATE TABLE IF NOT EXISTS risk_assessments (
		id UUID PRIMARY KEY,
		batch_id UUID NOT NULL REFERENCES batches(id),
		overall_score NUMERIC(5,4) NOT NULL,
		risk_level risk_level NOT NULL,
		assessed_at TIMESTAMPTZ NOT NULL,
		components JSONB NOT NULL,
		recommendations JSONB
	);`,
	`CREATE INDEX IF NOT EXISTS idx_risk_assessments_batch ON risk_assessments (batch_id, assessed_at DESC);`,
	`CREATE TABLE IF NOT EXISTS pipeline_states (
		batch_id UUID PRIMARY KEY REFERENCES batches(id),
		current_stage VARCHAR(64) NOT NULL,
		stages JSONB NOT NULL,
		blockers JSONB,
		updated_at TIMESTAMPTZ NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS mitigation_records (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		batch_id UUID NOT NULL REFERENCES batches(id),
		description TEXT NOT NULL,
		created_by UUID NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_mitigations_batch ON mitigation_records (batch_id);`,
	`CREATE TABLE IF NOT EXISTS pending_notarizations (
		id UUID PRIMARY KEY,
		target_kind VARCHAR(32) NOT NULL,
		target_id UUID NOT NULL,
		event_type VARCHAR(64) NOT NULL,
		payload_hash VARCHAR(64) NOT NULL,
		fields JSONB,
		attempts INT NOT NULL DEFAULT 0,
		next_attempt_at TIMESTAMPTZ NOT NULL,
		last_error TEXT,
		tx_ref VARCHAR(128),
		completed_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_pending_notarizations_due ON pending_notarizations (next_attempt_at) WHERE completed_at IS NULL;`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
