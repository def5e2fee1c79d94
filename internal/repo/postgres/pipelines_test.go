package postgres

import (
	"strings"
	"testing"

	"github.com/pipecanvas-labs/pipecanvas-go/internal/repo"
)

func TestBuildPipelineListQueryRequiresProjectID(t *testing.T) {
	_, _, err := buildPipelineListQuery(repo.PipelineFilter{})
	if err == nil {
		t.Fatalf("expected error for missing project id")
	}
}

func TestBuildPipelineListQueryIncludesProjectID(t *testing.T) {
	query, args, err := buildPipelineListQuery(repo.PipelineFilter{ProjectID: "proj-123"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(args) == 0 || args[0] != "proj-123" {
		t.Fatalf("expected project id as first arg, got %v", args)
	}
	if !strings.Contains(query, "project_id = $1") {
		t.Fatalf("expected project_id predicate in query, got %s", query)
	}
	if !strings.Contains(query, "ORDER BY created_at DESC") {
		t.Fatalf("expected ordering in query, got %s", query)
	}
}

func TestBuildPipelineListQueryWithWorkstreamAndLimit(t *testing.T) {
	query, args, err := buildPipelineListQuery(repo.PipelineFilter{ProjectID: "proj-123", Workstream: "payments", Limit: 25})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(args) != 3 {
		t.Fatalf("expected 3 args, got %d", len(args))
	}
	if !strings.Contains(query, "workstream = $2") {
		t.Fatalf("expected workstream predicate in query, got %s", query)
	}
	if !strings.Contains(query, "LIMIT $3") {
		t.Fatalf("expected limit in query, got %s", query)
	}
}

func TestInsertPipelineSQLScopesByProject(t *testing.T) {
	if !strings.Contains(insertPipelineSQL, "project_id") {
		t.Fatalf("insert must persist the project scope: %s", insertPipelineSQL)
	}
	if !strings.Contains(selectPipelineSQL, "project_id = $1 AND pipeline_id = $2") {
		t.Fatalf("select must filter on project and pipeline: %s", selectPipelineSQL)
	}
	if !strings.Contains(updatePipelineGraphSQL, "project_id = $3 AND pipeline_id = $4") {
		t.Fatalf("update must filter on project and pipeline: %s", updatePipelineGraphSQL)
	}
}
