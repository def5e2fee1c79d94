package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/pipecanvas-labs/pipecanvas-go/internal/compiler"
	"github.com/pipecanvas-labs/pipecanvas-go/internal/domain"
	"github.com/pipecanvas-labs/pipecanvas-go/internal/platform/auditlog"
	"github.com/pipecanvas-labs/pipecanvas-go/internal/repo"
)

type fakePipelineRepo struct {
	pipelines map[string]domain.Pipeline
}

func newFakePipelineRepo() *fakePipelineRepo {
	return &fakePipelineRepo{pipelines: map[string]domain.Pipeline{}}
}

func scopedKey(projectID, id string) string {
	return projectID + "/" + id
}

func (f *fakePipelineRepo) Create(ctx context.Context, pipeline domain.Pipeline) error {
	key := scopedKey(pipeline.ProjectID, pipeline.ID)
	if _, exists := f.pipelines[key]; exists {
		return fmt.Errorf("duplicate pipeline %s", key)
	}
	f.pipelines[key] = pipeline
	return nil
}

func (f *fakePipelineRepo) Get(ctx context.Context, projectID, id string) (domain.Pipeline, error) {
	pipeline, ok := f.pipelines[scopedKey(projectID, id)]
	if !ok {
		return domain.Pipeline{}, repo.ErrNotFound
	}
	return pipeline, nil
}

func (f *fakePipelineRepo) List(ctx context.Context, filter repo.PipelineFilter) ([]domain.Pipeline, error) {
	var out []domain.Pipeline
	for _, p := range f.pipelines {
		if p.ProjectID != filter.ProjectID {
			continue
		}
		if filter.Workstream != "" && p.Workstream != filter.Workstream {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakePipelineRepo) UpdateGraph(ctx context.Context, projectID, id string, graph domain.Graph, updatedAt time.Time) error {
	key := scopedKey(projectID, id)
	pipeline, ok := f.pipelines[key]
	if !ok {
		return repo.ErrNotFound
	}
	pipeline.Graph = graph
	pipeline.UpdatedAt = updatedAt
	f.pipelines[key] = pipeline
	return nil
}

type fakeStageConfigRepo struct {
	state map[string]domain.StageConfigState
}

func newFakeStageConfigRepo() *fakeStageConfigRepo {
	return &fakeStageConfigRepo{state: map[string]domain.StageConfigState{}}
}

func (f *fakeStageConfigRepo) Save(ctx context.Context, projectID, pipelineID string, key domain.StageKey, config domain.StageConfig) error {
	scoped := scopedKey(projectID, pipelineID)
	if f.state[scoped] == nil {
		f.state[scoped] = domain.StageConfigState{}
	}
	f.state[scoped][key] = config
	return nil
}

func (f *fakeStageConfigRepo) Snapshot(ctx context.Context, projectID, pipelineID string) (domain.StageConfigState, error) {
	state := f.state[scopedKey(projectID, pipelineID)]
	if state == nil {
		state = domain.StageConfigState{}
	}
	return state, nil
}

type fakeDescriptorRepo struct {
	records []repo.DescriptorRecord
}

func (f *fakeDescriptorRepo) Create(ctx context.Context, record repo.DescriptorRecord) error {
	f.records = append(f.records, record)
	return nil
}

func (f *fakeDescriptorRepo) Get(ctx context.Context, projectID, id string) (repo.DescriptorRecord, error) {
	for _, record := range f.records {
		if record.ProjectID == projectID && record.ID == id {
			return record, nil
		}
	}
	return repo.DescriptorRecord{}, repo.ErrNotFound
}

func (f *fakeDescriptorRepo) List(ctx context.Context, filter repo.DescriptorFilter) ([]repo.DescriptorRecord, error) {
	var out []repo.DescriptorRecord
	for _, record := range f.records {
		if record.ProjectID != filter.ProjectID {
			continue
		}
		if filter.PipelineID != "" && record.PipelineID != filter.PipelineID {
			continue
		}
		out = append(out, record)
	}
	return out, nil
}

type fakeObjectStore struct {
	objects map[string][]byte
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: map[string][]byte{}}
}

func (f *fakeObjectStore) Put(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.objects[bucket+"/"+key] = data
	return nil
}

func (f *fakeObjectStore) PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	return "https://minio.local/" + bucket + "/" + key, nil
}

type testHarness struct {
	svc         *designerService
	pipelines   *fakePipelineRepo
	configs     *fakeStageConfigRepo
	descriptors *fakeDescriptorRepo
	objects     *fakeObjectStore
	audited     []auditlog.Event
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	h := &testHarness{
		pipelines:   newFakePipelineRepo(),
		configs:     newFakeStageConfigRepo(),
		descriptors: &fakeDescriptorRepo{},
		objects:     newFakeObjectStore(),
	}
	h.svc = newDesignerService(
		h.pipelines,
		h.configs,
		h.descriptors,
		h.objects,
		"descriptors",
		10*time.Minute,
		func(ctx context.Context, event auditlog.Event) error {
			h.audited = append(h.audited, event)
			return nil
		},
	)
	h.svc.now = func() time.Time {
		return time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	}
	return h
}

func testAuditCtx() auditContext {
	return auditContext{Actor: "alice", RequestID: "req-1", Service: "designer", Path: "/test"}
}

func deploymentGraph() domain.Graph {
	return domain.Graph{
		Vertices: []domain.Vertex{
			{ID: "grp-dev", DeclaredType: "env_dev", Label: "Development"},
			{ID: "grp-qa", DeclaredType: "env_qa", Label: "QA"},
			{ID: "st-code", DeclaredType: "code_github", Label: "GitHub", ParentGroupID: "grp-dev"},
			{ID: "st-build", DeclaredType: "build_jenkins", Label: "Jenkins Build", ParentGroupID: "grp-dev"},
			{ID: "st-deploy", DeclaredType: "deploy_argo", Label: "Deploy QA", ParentGroupID: "grp-qa"},
			{ID: "note-1", DeclaredType: "note", Label: "remember to rotate creds"},
		},
		Edges: []domain.Edge{
			{ID: "e1", Source: "st-code", Target: "st-build"},
			{ID: "e2", Source: "st-build", Target: "st-deploy"},
		},
	}
}

func seedPipeline(t *testing.T, h *testHarness) domain.Pipeline {
	t.Helper()
	pipeline, err := h.svc.CreatePipeline(context.Background(), "proj-1", "checkout", "payments", deploymentGraph(), testAuditCtx())
	if err != nil {
		t.Fatalf("create pipeline: %v", err)
	}
	return pipeline
}

func TestCreatePipelineRequiresName(t *testing.T) {
	h := newTestHarness(t)
	_, err := h.svc.CreatePipeline(context.Background(), "proj-1", "  ", "", domain.Graph{Vertices: []domain.Vertex{}}, testAuditCtx())
	if err == nil {
		t.Fatal("expected error for empty name")
	}
}

func TestCreatePipelineAudits(t *testing.T) {
	h := newTestHarness(t)
	pipeline := seedPipeline(t, h)

	if len(h.audited) != 1 {
		t.Fatalf("audited %d events, want 1", len(h.audited))
	}
	event := h.audited[0]
	if event.Action != auditlog.ActionPipelineCreate || event.ResourceID != pipeline.ID {
		t.Fatalf("unexpected audit event: %+v", event)
	}
	if event.Actor != "alice" {
		t.Fatalf("audit actor = %q, want alice", event.Actor)
	}
}

func TestSaveStageConfigRequiresExistingPipeline(t *testing.T) {
	h := newTestHarness(t)
	key := domain.StageKey{EnvironmentGroupID: "grp-dev", StageID: "st-code"}
	err := h.svc.SaveStageConfig(context.Background(), "proj-1", "missing", key, domain.StageConfig{}, testAuditCtx())
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLayoutReturnsPositionedGraph(t *testing.T) {
	h := newTestHarness(t)
	pipeline := seedPipeline(t, h)

	graph, err := h.svc.Layout(context.Background(), "proj-1", pipeline.ID, testAuditCtx())
	if err != nil {
		t.Fatalf("layout: %v", err)
	}

	positions := map[string]domain.Position{}
	for _, v := range graph.Vertices {
		positions[v.ID] = v.Position
	}
	if positions["grp-dev"].X >= positions["grp-qa"].X {
		t.Fatalf("dev group must sit left of qa group: %+v", positions)
	}

	edgeIDs := map[string]struct{}{}
	for _, e := range graph.Edges {
		edgeIDs[e.ID] = struct{}{}
	}
	if _, ok := edgeIDs["flow-grp-dev-grp-qa"]; !ok {
		t.Fatalf("expected flow edge between groups, got %v", edgeIDs)
	}
	if _, ok := edgeIDs["seq-st-code-st-build"]; !ok {
		t.Fatalf("expected sequential child edge, got %v", edgeIDs)
	}

	// Layout is a preview; the stored graph is untouched until the
	// canvas saves it through a graph update.
	stored, err := h.pipelines.Get(context.Background(), "proj-1", pipeline.ID)
	if err != nil {
		t.Fatalf("get stored pipeline: %v", err)
	}
	if len(stored.Graph.Edges) != len(deploymentGraph().Edges) {
		t.Fatalf("layout must not persist: stored graph has %d edges", len(stored.Graph.Edges))
	}
}

func TestLayoutIsIdempotent(t *testing.T) {
	h := newTestHarness(t)
	pipeline := seedPipeline(t, h)

	first, err := h.svc.Layout(context.Background(), "proj-1", pipeline.ID, testAuditCtx())
	if err != nil {
		t.Fatalf("first layout: %v", err)
	}
	second, err := h.svc.Layout(context.Background(), "proj-1", pipeline.ID, testAuditCtx())
	if err != nil {
		t.Fatalf("second layout: %v", err)
	}
	if len(first.Edges) != len(second.Edges) {
		t.Fatalf("second layout added edges: %d then %d", len(first.Edges), len(second.Edges))
	}
}

func TestCompileProducesDescriptorAndUploads(t *testing.T) {
	h := newTestHarness(t)
	pipeline := seedPipeline(t, h)

	ctx := context.Background()
	mustSave := func(key domain.StageKey, config domain.StageConfig) {
		t.Helper()
		if err := h.svc.SaveStageConfig(ctx, "proj-1", pipeline.ID, key, config, testAuditCtx()); err != nil {
			t.Fatalf("save config %v: %v", key, err)
		}
	}
	mustSave(domain.StageKey{EnvironmentGroupID: "grp-dev", StageID: "st-code"}, domain.StageConfig{
		RepositoryURL: "https://github.example.com/payments/checkout",
		Branch:        "main",
	})
	mustSave(domain.StageKey{EnvironmentGroupID: "grp-qa", StageID: "st-deploy"}, domain.StageConfig{
		EnvironmentName: "qa",
		ApproverEmails:  []string{"lead@example.com"},
	})

	selected := []compiler.SelectedArtifact{
		{
			Package:  domain.PackageRef{ID: "pkg-1", Name: "checkout"},
			Artifact: domain.ArtifactRef{ID: "art-1", Name: "checkout-svc", Version: "1.4.0"},
		},
	}

	result, err := h.svc.Compile(ctx, "proj-1", pipeline.ID, selected, testAuditCtx())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	if result.Record.BuildVersion != "20260831.120000" {
		t.Fatalf("build version = %q", result.Record.BuildVersion)
	}
	wantKey := "proj-1/" + pipeline.ID + "/20260831.120000.yaml"
	if result.Record.ObjectKey != wantKey {
		t.Fatalf("object key = %q, want %q", result.Record.ObjectKey, wantKey)
	}
	if _, ok := h.objects.objects["descriptors/"+wantKey]; !ok {
		t.Fatalf("descriptor not uploaded, have %v", h.objects.objects)
	}
	if result.DownloadURL == "" {
		t.Fatal("expected presigned download url")
	}
	if len(h.descriptors.records) != 1 {
		t.Fatalf("stored %d descriptor records, want 1", len(h.descriptors.records))
	}

	yaml := string(result.YAML)
	for _, want := range []string{
		"pipelineName: checkout",
		"workstream: payments",
		"buildVersion: \"20260831.120000\"",
		"name: Development",
		"name: QA",
		"kind: source",
		"kind: deployment",
		"environment: qa",
		"- lead@example.com",
	} {
		if !strings.Contains(yaml, want) {
			t.Errorf("descriptor yaml missing %q:\n%s", want, yaml)
		}
	}
	// st-build has no configuration entry and must be omitted.
	if strings.Contains(yaml, "Jenkins Build") {
		t.Errorf("unconfigured stage leaked into descriptor:\n%s", yaml)
	}

	if result.Descriptor.Nodes[0].Name != "Development" {
		t.Fatalf("first node = %q, want Development", result.Descriptor.Nodes[0].Name)
	}
}

func TestCompileUnknownPipeline(t *testing.T) {
	h := newTestHarness(t)
	_, err := h.svc.Compile(context.Background(), "proj-1", "missing", nil, testAuditCtx())
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found, got %v", err)
	}
}
