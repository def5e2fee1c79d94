package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pipecanvas-labs/pipecanvas-go/internal/compiler"
	"github.com/pipecanvas-labs/pipecanvas-go/internal/domain"
	"github.com/pipecanvas-labs/pipecanvas-go/internal/platform/auditlog"
	"github.com/pipecanvas-labs/pipecanvas-go/internal/repo"
)

type auditContext struct {
	Actor     string
	RequestID string
	IP        net.IP
	UserAgent string
	Path      string
	Service   string
}

// descriptorStore is the object surface the compile path needs.
type descriptorStore interface {
	Put(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) error
	PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

type auditFunc func(ctx context.Context, event auditlog.Event) error

type designerService struct {
	pipelines   repo.PipelineRepository
	configs     repo.StageConfigRepository
	descriptors repo.DescriptorRepository
	objects     descriptorStore
	bucket      string
	presignTTL  time.Duration
	layoutCfg   compiler.LayoutConfig
	audit       auditFunc
	now         func() time.Time
}

func newDesignerService(
	pipelines repo.PipelineRepository,
	configs repo.StageConfigRepository,
	descriptors repo.DescriptorRepository,
	objects descriptorStore,
	bucket string,
	presignTTL time.Duration,
	audit auditFunc,
) *designerService {
	return &designerService{
		pipelines:   pipelines,
		configs:     configs,
		descriptors: descriptors,
		objects:     objects,
		bucket:      bucket,
		presignTTL:  presignTTL,
		layoutCfg:   compiler.DefaultLayoutConfig(),
		audit:       audit,
		now:         time.Now,
	}
}

func (s *designerService) CreatePipeline(ctx context.Context, projectID, name, workstream string, graph domain.Graph, auditCtx auditContext) (domain.Pipeline, error) {
	if s == nil || s.pipelines == nil {
		return domain.Pipeline{}, fmt.Errorf("pipeline service not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Pipeline{}, fmt.Errorf("pipeline name is required")
	}
	if graph.Vertices == nil {
		graph.Vertices = []domain.Vertex{}
	}

	now := s.now().UTC()
	pipeline := domain.Pipeline{
		ID:         uuid.NewString(),
		ProjectID:  strings.TrimSpace(projectID),
		Name:       name,
		Workstream: strings.TrimSpace(workstream),
		Graph:      graph,
		CreatedAt:  now,
		CreatedBy:  auditCtx.Actor,
		UpdatedAt:  now,
	}
	if err := pipeline.Validate(); err != nil {
		return domain.Pipeline{}, err
	}
	if err := s.pipelines.Create(ctx, pipeline); err != nil {
		return domain.Pipeline{}, err
	}

	s.appendAudit(ctx, auditCtx, auditlog.ActionPipelineCreate, "pipeline", pipeline.ID, pipeline.ProjectID, map[string]any{
		"name":       pipeline.Name,
		"workstream": pipeline.Workstream,
		"vertices":   len(pipeline.Graph.Vertices),
		"edges":      len(pipeline.Graph.Edges),
	})
	return pipeline, nil
}

func (s *designerService) GetPipeline(ctx context.Context, projectID, id string) (domain.Pipeline, error) {
	if s == nil || s.pipelines == nil {
		return domain.Pipeline{}, fmt.Errorf("pipeline service not initialized")
	}
	return s.pipelines.Get(ctx, projectID, id)
}

func (s *designerService) ListPipelines(ctx context.Context, projectID, workstream string, limit int) ([]domain.Pipeline, error) {
	if s == nil || s.pipelines == nil {
		return nil, fmt.Errorf("pipeline service not initialized")
	}
	return s.pipelines.List(ctx, repo.PipelineFilter{ProjectID: projectID, Workstream: workstream, Limit: limit})
}

func (s *designerService) UpdatePipelineGraph(ctx context.Context, projectID, id string, graph domain.Graph, auditCtx auditContext) error {
	if s == nil || s.pipelines == nil {
		return fmt.Errorf("pipeline service not initialized")
	}
	if err := graph.ValidateBasicShape(); err != nil {
		return err
	}
	if err := s.pipelines.UpdateGraph(ctx, projectID, id, graph, s.now().UTC()); err != nil {
		return err
	}
	s.appendAudit(ctx, auditCtx, auditlog.ActionPipelineUpdate, "pipeline", id, projectID, map[string]any{
		"vertices": len(graph.Vertices),
		"edges":    len(graph.Edges),
	})
	return nil
}

func (s *designerService) SaveStageConfig(ctx context.Context, projectID, pipelineID string, key domain.StageKey, config domain.StageConfig, auditCtx auditContext) error {
	if s == nil || s.configs == nil {
		return fmt.Errorf("stage config service not initialized")
	}
	if err := key.Validate(); err != nil {
		return err
	}
	if _, err := s.pipelines.Get(ctx, projectID, pipelineID); err != nil {
		return err
	}
	if err := s.configs.Save(ctx, projectID, pipelineID, key, config); err != nil {
		return err
	}
	s.appendAudit(ctx, auditCtx, auditlog.ActionStageConfigSave, "stage_config", key.String(), projectID, map[string]any{
		"pipeline_id": pipelineID,
		"stage_key":   key.String(),
	})
	return nil
}

func (s *designerService) StageConfigSnapshot(ctx context.Context, projectID, pipelineID string) (domain.StageConfigState, error) {
	if s == nil || s.configs == nil {
		return nil, fmt.Errorf("stage config service not initialized")
	}
	return s.configs.Snapshot(ctx, projectID, pipelineID)
}

// Layout classifies the stored graph, resolves ownership, orders the
// deployment structure, and places everything. The positioned graph is
// returned, not persisted; the canvas saves it explicitly through a
// graph update if the user keeps the arrangement.
func (s *designerService) Layout(ctx context.Context, projectID, pipelineID string, auditCtx auditContext) (domain.Graph, error) {
	if s == nil || s.pipelines == nil {
		return domain.Graph{}, fmt.Errorf("pipeline service not initialized")
	}
	pipeline, err := s.pipelines.Get(ctx, projectID, pipelineID)
	if err != nil {
		return domain.Graph{}, err
	}

	classified := compiler.ClassifyGraph(pipeline.Graph)
	assignment := compiler.ResolveOwnership(classified, pipeline.Graph.Edges)
	ordered := compiler.OrderDeployment(assignment)
	layout := compiler.ComputeLayout(classified, ordered, assignment.General, s.layoutCfg)

	existing := make(map[string]struct{}, len(pipeline.Graph.Edges))
	edges := make([]domain.Edge, 0, len(pipeline.Graph.Edges))
	for _, e := range pipeline.Graph.Edges {
		existing[e.ID] = struct{}{}
		edges = append(edges, e)
	}
	for _, e := range layout.SyntheticEdges {
		if _, ok := existing[e.ID]; ok {
			continue
		}
		existing[e.ID] = struct{}{}
		edges = append(edges, e)
	}
	edges = append(edges, compiler.SynthesizeFlowEdges(ordered, existing)...)

	graph := domain.Graph{Vertices: layout.Vertices, Edges: edges}

	s.appendAudit(ctx, auditCtx, auditlog.ActionPipelineLayout, "pipeline", pipelineID, projectID, map[string]any{
		"groups":  len(ordered),
		"orphans": len(assignment.General),
	})
	return graph, nil
}

// CompileResult is everything the compile endpoint returns: the record,
// the serialized descriptor, and a presigned download link.
type CompileResult struct {
	Record      repo.DescriptorRecord
	Descriptor  domain.PipelineDescriptor
	YAML        []byte
	DownloadURL string
}

func (s *designerService) Compile(ctx context.Context, projectID, pipelineID string, selected []compiler.SelectedArtifact, auditCtx auditContext) (CompileResult, error) {
	if s == nil || s.pipelines == nil || s.configs == nil || s.descriptors == nil {
		return CompileResult{}, fmt.Errorf("compile service not initialized")
	}
	pipeline, err := s.pipelines.Get(ctx, projectID, pipelineID)
	if err != nil {
		return CompileResult{}, err
	}
	configState, err := s.configs.Snapshot(ctx, projectID, pipelineID)
	if err != nil {
		return CompileResult{}, err
	}

	classified := compiler.ClassifyGraph(pipeline.Graph)
	assignment := compiler.ResolveOwnership(classified, pipeline.Graph.Edges)
	ordered := compiler.OrderDeployment(assignment)

	now := s.now().UTC()
	descriptor := compiler.CompileDescriptor(compiler.CompileInput{
		PipelineName:      pipeline.Name,
		Workstream:        pipeline.Workstream,
		Ordered:           ordered,
		ConfigState:       configState,
		SelectedArtifacts: selected,
	}, now)

	yamlBytes, err := compiler.MarshalDescriptor(descriptor)
	if err != nil {
		return CompileResult{}, fmt.Errorf("marshal descriptor: %w", err)
	}

	record := repo.DescriptorRecord{
		ID:           uuid.NewString(),
		ProjectID:    pipeline.ProjectID,
		PipelineID:   pipeline.ID,
		BuildVersion: descriptor.BuildVersion,
		ObjectKey:    descriptorObjectKey(pipeline.ProjectID, pipeline.ID, descriptor.BuildVersion),
		YAML:         yamlBytes,
		CreatedAt:    now,
		CreatedBy:    auditCtx.Actor,
	}

	var downloadURL string
	if s.objects != nil {
		if err := s.objects.Put(ctx, s.bucket, record.ObjectKey, bytes.NewReader(yamlBytes), int64(len(yamlBytes)), "application/yaml"); err != nil {
			return CompileResult{}, fmt.Errorf("upload descriptor: %w", err)
		}
		downloadURL, err = s.objects.PresignGet(ctx, s.bucket, record.ObjectKey, s.presignTTL)
		if err != nil {
			return CompileResult{}, fmt.Errorf("presign descriptor: %w", err)
		}
	}

	if err := s.descriptors.Create(ctx, record); err != nil {
		return CompileResult{}, err
	}

	s.appendAudit(ctx, auditCtx, auditlog.ActionPipelineCompile, "descriptor", record.ID, projectID, map[string]any{
		"pipeline_id":   pipelineID,
		"build_version": record.BuildVersion,
		"object_key":    record.ObjectKey,
		"nodes":         len(descriptor.Nodes),
	})
	return CompileResult{
		Record:      record,
		Descriptor:  descriptor,
		YAML:        yamlBytes,
		DownloadURL: downloadURL,
	}, nil
}

func (s *designerService) GetDescriptor(ctx context.Context, projectID, id string) (repo.DescriptorRecord, error) {
	if s == nil || s.descriptors == nil {
		return repo.DescriptorRecord{}, fmt.Errorf("descriptor service not initialized")
	}
	return s.descriptors.Get(ctx, projectID, id)
}

func (s *designerService) ListDescriptors(ctx context.Context, projectID, pipelineID string, limit int) ([]repo.DescriptorRecord, error) {
	if s == nil || s.descriptors == nil {
		return nil, fmt.Errorf("descriptor service not initialized")
	}
	return s.descriptors.List(ctx, repo.DescriptorFilter{ProjectID: projectID, PipelineID: pipelineID, Limit: limit})
}

func (s *designerService) appendAudit(ctx context.Context, auditCtx auditContext, action, resourceType, resourceID, projectID string, payload map[string]any) {
	if s.audit == nil {
		return
	}
	if payload == nil {
		payload = map[string]any{}
	}
	payload["service"] = auditCtx.Service
	payload["request_path"] = auditCtx.Path
	_ = s.audit(ctx, auditlog.Event{
		OccurredAt:   s.now().UTC(),
		Actor:        auditCtx.Actor,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		ProjectID:    projectID,
		RequestID:    auditCtx.RequestID,
		IP:           auditCtx.IP,
		UserAgent:    auditCtx.UserAgent,
		Payload:      payload,
	})
}

func descriptorObjectKey(projectID, pipelineID, buildVersion string) string {
	return path.Join(projectID, pipelineID, buildVersion+".yaml")
}
