package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/pipecanvas-labs/pipecanvas-go/internal/repo"
)

type DescriptorStore struct {
	db DB
}

func NewDescriptorStore(db DB) *DescriptorStore {
	if db == nil {
		return nil
	}
	return &DescriptorStore{db: db}
}

const insertDescriptorSQL = `INSERT INTO descriptors (
	descriptor_id,
	project_id,
	pipeline_id,
	build_version,
	object_key,
	yaml,
	created_at,
	created_by
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

func (s *DescriptorStore) Create(ctx context.Context, record repo.DescriptorRecord) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("descriptor store not initialized")
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("descriptor id is required")
	}
	if strings.TrimSpace(record.ProjectID) == "" || strings.TrimSpace(record.PipelineID) == "" {
		return fmt.Errorf("project id and pipeline id are required")
	}
	if strings.TrimSpace(record.BuildVersion) == "" {
		return fmt.Errorf("build version is required")
	}
	if len(record.YAML) == 0 {
		return fmt.Errorf("descriptor yaml is required")
	}

	_, err := s.db.ExecContext(
		ctx,
		insertDescriptorSQL,
		strings.TrimSpace(record.ID),
		strings.TrimSpace(record.ProjectID),
		strings.TrimSpace(record.PipelineID),
		strings.TrimSpace(record.BuildVersion),
		strings.TrimSpace(record.ObjectKey),
		record.YAML,
		normalizeTime(record.CreatedAt),
		strings.TrimSpace(record.CreatedBy),
	)
	if err != nil {
		return fmt.Errorf("insert descriptor: %w", err)
	}
	return nil
}

const selectDescriptorSQL = `SELECT descriptor_id, project_id, pipeline_id, build_version, object_key, yaml, created_at, created_by
 FROM descriptors
 WHERE project_id = $1 AND descriptor_id = $2`

func (s *DescriptorStore) Get(ctx context.Context, projectID, id string) (repo.DescriptorRecord, error) {
	if s == nil || s.db == nil {
		return repo.DescriptorRecord{}, fmt.Errorf("descriptor store not initialized")
	}
	projectID = strings.TrimSpace(projectID)
	id = strings.TrimSpace(id)
	if projectID == "" || id == "" {
		return repo.DescriptorRecord{}, fmt.Errorf("project id and descriptor id are required")
	}

	var record repo.DescriptorRecord
	row := s.db.QueryRowContext(ctx, selectDescriptorSQL, projectID, id)
	if err := row.Scan(&record.ID, &record.ProjectID, &record.PipelineID, &record.BuildVersion, &record.ObjectKey, &record.YAML, &record.CreatedAt, &record.CreatedBy); err != nil {
		return repo.DescriptorRecord{}, handleNotFound(err)
	}
	return record, nil
}

func buildDescriptorListQuery(filter repo.DescriptorFilter) (string, []any, error) {
	if strings.TrimSpace(filter.ProjectID) == "" {
		return "", nil, fmt.Errorf("project id is required")
	}

	args := []any{strings.TrimSpace(filter.ProjectID)}
	clauses := []string{"project_id = $1"}
	if strings.TrimSpace(filter.PipelineID) != "" {
		args = append(args, strings.TrimSpace(filter.PipelineID))
		clauses = append(clauses, fmt.Sprintf("pipeline_id = $%d", len(args)))
	}

	query := `SELECT descriptor_id, project_id, pipeline_id, build_version, object_key, yaml, created_at, created_by FROM descriptors WHERE ` +
		strings.Join(clauses, " AND ") + " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return query, args, nil
}

func (s *DescriptorStore) List(ctx context.Context, filter repo.DescriptorFilter) ([]repo.DescriptorRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("descriptor store not initialized")
	}
	query, args, err := buildDescriptorListQuery(filter)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list descriptors: %w", err)
	}
	defer rows.Close()

	records := make([]repo.DescriptorRecord, 0)
	for rows.Next() {
		var record repo.DescriptorRecord
		if err := rows.Scan(&record.ID, &record.ProjectID, &record.PipelineID, &record.BuildVersion, &record.ObjectKey, &record.YAML, &record.CreatedAt, &record.CreatedBy); err != nil {
			return nil, fmt.Errorf("scan descriptor: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list descriptors: %w", err)
	}
	return records, nil
}
