package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/pipecanvas-labs/pipecanvas-go/internal/domain"
)

type StageConfigStore struct {
	db DB
}

func NewStageConfigStore(db DB) *StageConfigStore {
	if db == nil {
		return nil
	}
	return &StageConfigStore{db: db}
}

// Upsert keyed on (project, pipeline, group, stage). The two key halves
// are stored as separate columns; the wire-format string never reaches
// the database.
const upsertStageConfigSQL = `INSERT INTO stage_configs (
	project_id,
	pipeline_id,
	environment_group_id,
	stage_id,
	connector_id,
	environment_name,
	repository_url,
	branch,
	approver_emails,
	jira_number,
	updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,now())
ON CONFLICT (project_id, pipeline_id, environment_group_id, stage_id)
DO UPDATE SET
	connector_id = EXCLUDED.connector_id,
	environment_name = EXCLUDED.environment_name,
	repository_url = EXCLUDED.repository_url,
	branch = EXCLUDED.branch,
	approver_emails = EXCLUDED.approver_emails,
	jira_number = EXCLUDED.jira_number,
	updated_at = now()`

func (s *StageConfigStore) Save(ctx context.Context, projectID, pipelineID string, key domain.StageKey, config domain.StageConfig) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("stage config store not initialized")
	}
	projectID = strings.TrimSpace(projectID)
	pipelineID = strings.TrimSpace(pipelineID)
	if projectID == "" || pipelineID == "" {
		return fmt.Errorf("project id and pipeline id are required")
	}
	if err := key.Validate(); err != nil {
		return err
	}

	approvers := make([]string, 0, len(config.ApproverEmails))
	for _, email := range config.ApproverEmails {
		if trimmed := strings.TrimSpace(email); trimmed != "" {
			approvers = append(approvers, trimmed)
		}
	}

	_, err := s.db.ExecContext(
		ctx,
		upsertStageConfigSQL,
		projectID,
		pipelineID,
		strings.TrimSpace(key.EnvironmentGroupID),
		strings.TrimSpace(key.StageID),
		strings.TrimSpace(config.ConnectorID),
		strings.TrimSpace(config.EnvironmentName),
		strings.TrimSpace(config.RepositoryURL),
		strings.TrimSpace(config.Branch),
		strings.Join(approvers, ","),
		strings.TrimSpace(config.JiraNumber),
	)
	if err != nil {
		return fmt.Errorf("save stage config: %w", err)
	}
	return nil
}

const selectStageConfigsSQL = `SELECT environment_group_id, stage_id, connector_id, environment_name, repository_url, branch, approver_emails, jira_number
 FROM stage_configs
 WHERE project_id = $1 AND pipeline_id = $2`

// Snapshot loads every configuration entry for one pipeline. The result
// is the immutable input to one compile pass.
func (s *StageConfigStore) Snapshot(ctx context.Context, projectID, pipelineID string) (domain.StageConfigState, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("stage config store not initialized")
	}
	projectID = strings.TrimSpace(projectID)
	pipelineID = strings.TrimSpace(pipelineID)
	if projectID == "" || pipelineID == "" {
		return nil, fmt.Errorf("project id and pipeline id are required")
	}

	rows, err := s.db.QueryContext(ctx, selectStageConfigsSQL, projectID, pipelineID)
	if err != nil {
		return nil, fmt.Errorf("load stage configs: %w", err)
	}
	defer rows.Close()

	state := make(domain.StageConfigState)
	for rows.Next() {
		var (
			key       domain.StageKey
			config    domain.StageConfig
			approvers string
		)
		if err := rows.Scan(&key.EnvironmentGroupID, &key.StageID, &config.ConnectorID, &config.EnvironmentName, &config.RepositoryURL, &config.Branch, &approvers, &config.JiraNumber); err != nil {
			return nil, fmt.Errorf("scan stage config: %w", err)
		}
		if approvers != "" {
			config.ApproverEmails = strings.Split(approvers, ",")
		}
		state[key] = config
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load stage configs: %w", err)
	}
	return state, nil
}
