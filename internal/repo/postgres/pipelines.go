package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pipecanvas-labs/pipecanvas-go/internal/domain"
	"github.com/pipecanvas-labs/pipecanvas-go/internal/repo"
)

type PipelineStore struct {
	db DB
}

func NewPipelineStore(db DB) *PipelineStore {
	if db == nil {
		return nil
	}
	return &PipelineStore{db: db}
}

const insertPipelineSQL = `INSERT INTO pipelines (
	pipeline_id,
	project_id,
	name,
	workstream,
	graph,
	created_at,
	created_by,
	updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

func (s *PipelineStore) Create(ctx context.Context, pipeline domain.Pipeline) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("pipeline store not initialized")
	}
	if strings.TrimSpace(pipeline.ID) == "" {
		return fmt.Errorf("pipeline id is required")
	}
	if err := pipeline.Validate(); err != nil {
		return err
	}
	graphJSON, err := domain.MarshalGraphJSON(pipeline.Graph)
	if err != nil {
		return fmt.Errorf("encode graph: %w", err)
	}
	createdAt := normalizeTime(pipeline.CreatedAt)
	updatedAt := pipeline.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	_, err = s.db.ExecContext(
		ctx,
		insertPipelineSQL,
		strings.TrimSpace(pipeline.ID),
		strings.TrimSpace(pipeline.ProjectID),
		strings.TrimSpace(pipeline.Name),
		strings.TrimSpace(pipeline.Workstream),
		graphJSON,
		createdAt,
		strings.TrimSpace(pipeline.CreatedBy),
		updatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert pipeline: %w", err)
	}
	return nil
}

const selectPipelineSQL = `SELECT pipeline_id, project_id, name, workstream, graph, created_at, created_by, updated_at
 FROM pipelines
 WHERE project_id = $1 AND pipeline_id = $2`

func (s *PipelineStore) Get(ctx context.Context, projectID, id string) (domain.Pipeline, error) {
	if s == nil || s.db == nil {
		return domain.Pipeline{}, fmt.Errorf("pipeline store not initialized")
	}
	projectID = strings.TrimSpace(projectID)
	id = strings.TrimSpace(id)
	if projectID == "" || id == "" {
		return domain.Pipeline{}, fmt.Errorf("project id and pipeline id are required")
	}

	var (
		pipeline  domain.Pipeline
		graphJSON []byte
	)
	row := s.db.QueryRowContext(ctx, selectPipelineSQL, projectID, id)
	if err := row.Scan(&pipeline.ID, &pipeline.ProjectID, &pipeline.Name, &pipeline.Workstream, &graphJSON, &pipeline.CreatedAt, &pipeline.CreatedBy, &pipeline.UpdatedAt); err != nil {
		return domain.Pipeline{}, handleNotFound(err)
	}
	graph, err := domain.UnmarshalGraphJSON(graphJSON)
	if err != nil {
		return domain.Pipeline{}, err
	}
	pipeline.Graph = graph
	return pipeline, nil
}

func buildPipelineListQuery(filter repo.PipelineFilter) (string, []any, error) {
	if strings.TrimSpace(filter.ProjectID) == "" {
		return "", nil, fmt.Errorf("project id is required")
	}

	args := []any{strings.TrimSpace(filter.ProjectID)}
	clauses := []string{"project_id = $1"}

	if strings.TrimSpace(filter.Name) != "" {
		args = append(args, strings.TrimSpace(filter.Name))
		clauses = append(clauses, fmt.Sprintf("name = $%d", len(args)))
	}
	if strings.TrimSpace(filter.Workstream) != "" {
		args = append(args, strings.TrimSpace(filter.Workstream))
		clauses = append(clauses, fmt.Sprintf("workstream = $%d", len(args)))
	}
	if strings.TrimSpace(filter.CreatedBy) != "" {
		args = append(args, strings.TrimSpace(filter.CreatedBy))
		clauses = append(clauses, fmt.Sprintf("created_by = $%d", len(args)))
	}

	query := `SELECT pipeline_id, project_id, name, workstream, graph, created_at, created_by, updated_at FROM pipelines WHERE ` +
		strings.Join(clauses, " AND ") + " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return query, args, nil
}

func (s *PipelineStore) List(ctx context.Context, filter repo.PipelineFilter) ([]domain.Pipeline, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("pipeline store not initialized")
	}
	query, args, err := buildPipelineListQuery(filter)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pipelines: %w", err)
	}
	defer rows.Close()

	pipelines := make([]domain.Pipeline, 0)
	for rows.Next() {
		var p domain.Pipeline
		var graphJSON []byte
		if err := rows.Scan(&p.ID, &p.ProjectID, &p.Name, &p.Workstream, &graphJSON, &p.CreatedAt, &p.CreatedBy, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan pipeline: %w", err)
		}
		graph, err := domain.UnmarshalGraphJSON(graphJSON)
		if err != nil {
			return nil, err
		}
		p.Graph = graph
		pipelines = append(pipelines, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pipelines: %w", err)
	}
	return pipelines, nil
}

const updatePipelineGraphSQL = `UPDATE pipelines
 SET graph = $1, updated_at = $2
 WHERE project_id = $3 AND pipeline_id = $4`

func (s *PipelineStore) UpdateGraph(ctx context.Context, projectID, id string, graph domain.Graph, updatedAt time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("pipeline store not initialized")
	}
	projectID = strings.TrimSpace(projectID)
	id = strings.TrimSpace(id)
	if projectID == "" || id == "" {
		return fmt.Errorf("project id and pipeline id are required")
	}
	if err := graph.ValidateBasicShape(); err != nil {
		return err
	}
	graphJSON, err := domain.MarshalGraphJSON(graph)
	if err != nil {
		return fmt.Errorf("encode graph: %w", err)
	}

	result, err := s.db.ExecContext(ctx, updatePipelineGraphSQL, graphJSON, normalizeTime(updatedAt), projectID, id)
	if err != nil {
		return fmt.Errorf("update pipeline graph: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update pipeline graph: %w", err)
	}
	if affected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
