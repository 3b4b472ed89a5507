package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/samwel-gachiri/agribackup-sub003/internal/model"
)

type PipelineRepository struct {
	db *gorm.DB
}

func NewPipelineRepository(db *gorm.DB) *PipelineRepository {
	return &PipelineRepository{db: db}
}

type pipelineRow struct {
	BatchID      uuid.UUID
	CurrentStage string
	Stages       []byte
	Blockers     []byte
	UpdatedAt    time.Time
}

func (r *PipelineRepository) Get(ctx context.Context, batchID uuid.UUID) (*model.PipelineState, error) {
	var row pipelineRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT batch_id, current_stage, stages, blockers, updated_at
		FROM pipeline_states
		WHERE batch_id = ?
		LIMIT 1
	`, batchID).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.BatchID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}

	state := &model.PipelineState{
		BatchID:      row.BatchID,
		CurrentStage: model.StageID(row.CurrentStage),
		UpdatedAt:    row.UpdatedAt,
	}
	if len(row.Stages) > 0 {
		if err := json.Unmarshal(row.Stages, &state.Stages); err != nil {
			return nil, err
		}
	}
	if len(row.Blockers) > 0 {
		if err := json.Unmarshal(row.Blockers, &state.Blockers); err != nil {
			return nil, err
		}
	}
	return state, nil
}

// Save upserts the 1:1 per-batch pipeline state.
func (r *PipelineRepository) Save(ctx context.Context, state *model.PipelineState) error {
	stages, err := json.Marshal(state.Stages)
	if err != nil {
		return err
	}
	blockers, err := json.Marshal(state.Blockers)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Exec(`
		INSERT INTO pipeline_states (batch_id, current_stage, stages, blockers, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (batch_id) DO UPDATE SET
			current_stage = EXCLUDED.current_stage,
			stages = EXCLUDED.stages,
			blockers = EXCLUDED.blockers,
			updated_at = EXCLUDED.updated_at
	`,
		state.BatchID,
		string(state.CurrentStage),
		stages,
		blockers,
		state.UpdatedAt,
	).Error
}
