// Package repo declares the persistence interfaces the designer service
// depends on. Implementations live in subpackages; callers never see a
// concrete store type.
package repo

import (
	"context"
	"time"

	"github.com/pipecanvas-labs/pipecanvas-go/internal/domain"
)

type PipelineFilter struct {
	ProjectID  string
	Name       string
	Workstream string
	CreatedBy  string
	Limit      int
}

type DescriptorFilter struct {
	ProjectID  string
	PipelineID string
	Limit      int
}

// DescriptorRecord is one compiled descriptor: the serialized YAML plus
// the object store key where the artifact was uploaded.
type DescriptorRecord struct {
	ID           string
	ProjectID    string
	PipelineID   string
	BuildVersion string
	ObjectKey    string
	YAML         []byte
	CreatedAt    time.Time
	CreatedBy    string
}

// PipelineRepository manages pipeline graphs.
type PipelineRepository interface {
	Create(ctx context.Context, pipeline domain.Pipeline) error
	Get(ctx context.Context, projectID, id string) (domain.Pipeline, error)
	List(ctx context.Context, filter PipelineFilter) ([]domain.Pipeline, error)
	UpdateGraph(ctx context.Context, projectID, id string, graph domain.Graph, updatedAt time.Time) error
}

// StageConfigRepository manages per-stage configuration entries. Save
// upserts one entry; Snapshot returns everything the compiler needs for
// one pass.
type StageConfigRepository interface {
	Save(ctx context.Context, projectID, pipelineID string, key domain.StageKey, config domain.StageConfig) error
	Snapshot(ctx context.Context, projectID, pipelineID string) (domain.StageConfigState, error)
}

// DescriptorRepository records compiled descriptors append-only.
type DescriptorRepository interface {
	Create(ctx context.Context, record DescriptorRecord) error
	Get(ctx context.Context, projectID, id string) (DescriptorRecord, error)
	List(ctx context.Context, filter DescriptorFilter) ([]DescriptorRecord, error)
}
