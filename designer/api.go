package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pipecanvas-labs/pipecanvas-go/internal/compiler"
	"github.com/pipecanvas-labs/pipecanvas-go/internal/domain"
	"github.com/pipecanvas-labs/pipecanvas-go/internal/platform/auth"
	"github.com/pipecanvas-labs/pipecanvas-go/internal/repo"
)

type designerAPI struct {
	logger *slog.Logger
	svc    *designerService
}

func newDesignerAPI(logger *slog.Logger, svc *designerService) *designerAPI {
	return &designerAPI{logger: logger, svc: svc}
}

func (api *designerAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("POST /pipelines", api.handleCreatePipeline)
	mux.HandleFunc("GET /pipelines", api.handleListPipelines)
	mux.HandleFunc("GET /pipelines/{pipeline_id}", api.handleGetPipeline)
	mux.HandleFunc("PUT /pipelines/{pipeline_id}/graph", api.handleUpdateGraph)

	mux.HandleFunc("PUT /pipelines/{pipeline_id}/stage-configs/{stage_key}", api.handleSaveStageConfig)
	mux.HandleFunc("GET /pipelines/{pipeline_id}/stage-configs", api.handleListStageConfigs)

	mux.HandleFunc("POST /pipelines/{pipeline_id}/layout", api.handleLayout)
	mux.HandleFunc("POST /pipelines/{pipeline_id}/compile", api.handleCompile)

	mux.HandleFunc("GET /descriptors", api.handleListDescriptors)
	mux.HandleFunc("GET /descriptors/{descriptor_id}", api.handleGetDescriptor)
}

type pipelinePayload struct {
	PipelineID string          `json:"pipeline_id"`
	ProjectID  string          `json:"project_id"`
	Name       string          `json:"name"`
	Workstream string          `json:"workstream,omitempty"`
	Graph      json.RawMessage `json:"graph"`
	CreatedAt  time.Time       `json:"created_at"`
	CreatedBy  string          `json:"created_by"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type createPipelineRequest struct {
	Name       string          `json:"name"`
	Workstream string          `json:"workstream,omitempty"`
	Graph      json.RawMessage `json:"graph,omitempty"`
}

type updateGraphRequest struct {
	Graph json.RawMessage `json:"graph"`
}

type stageConfigPayload struct {
	StageKey        string   `json:"stage_key"`
	ConnectorID     string   `json:"connector_id,omitempty"`
	EnvironmentName string   `json:"environment_name,omitempty"`
	RepositoryURL   string   `json:"repository_url,omitempty"`
	Branch          string   `json:"branch,omitempty"`
	ApproverEmails  []string `json:"approver_emails,omitempty"`
	JiraNumber      string   `json:"jira_number,omitempty"`
}

type saveStageConfigRequest struct {
	ConnectorID     string   `json:"connector_id,omitempty"`
	EnvironmentName string   `json:"environment_name,omitempty"`
	RepositoryURL   string   `json:"repository_url,omitempty"`
	Branch          string   `json:"branch,omitempty"`
	ApproverEmails  []string `json:"approver_emails,omitempty"`
	JiraNumber      string   `json:"jira_number,omitempty"`
}

type packageRefPayload struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

type artifactRefPayload struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
	Type    string `json:"type,omitempty"`
}

type selectedArtifactPayload struct {
	Package  packageRefPayload  `json:"package"`
	Artifact artifactRefPayload `json:"artifact"`
}

type compileRequest struct {
	SelectedArtifacts []selectedArtifactPayload `json:"selectedArtifacts,omitempty"`
}

type compileResponse struct {
	DescriptorID string          `json:"descriptor_id"`
	PipelineID   string          `json:"pipeline_id"`
	BuildVersion string          `json:"build_version"`
	ObjectKey    string          `json:"object_key"`
	Descriptor   string          `json:"descriptor"`
	DownloadURL  string          `json:"download_url,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	CreatedBy    string          `json:"created_by"`
}

type layoutResponse struct {
	PipelineID string          `json:"pipeline_id"`
	Graph      json.RawMessage `json:"graph"`
}

type descriptorRecordPayload struct {
	DescriptorID string    `json:"descriptor_id"`
	ProjectID    string    `json:"project_id"`
	PipelineID   string    `json:"pipeline_id"`
	BuildVersion string    `json:"build_version"`
	ObjectKey    string    `json:"object_key"`
	Descriptor   string    `json:"descriptor"`
	CreatedAt    time.Time `json:"created_at"`
	CreatedBy    string    `json:"created_by"`
}

func (api *designerAPI) handleCreatePipeline(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || strings.TrimSpace(identity.Subject) == "" {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	projectID, ok := auth.ProjectIDFromContext(r.Context())
	if !ok || strings.TrimSpace(projectID) == "" {
		api.writeError(w, r, http.StatusBadRequest, "project_id_required")
		return
	}

	var req createPipelineRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		api.writeError(w, r, http.StatusBadRequest, "name_required")
		return
	}

	graph := domain.Graph{Vertices: []domain.Vertex{}}
	if len(req.Graph) > 0 {
		decoded, err := domain.UnmarshalGraphJSON(req.Graph)
		if err != nil {
			api.writeError(w, r, http.StatusBadRequest, "invalid_graph")
			return
		}
		graph = decoded
	}

	pipeline, err := api.svc.CreatePipeline(r.Context(), projectID, req.Name, req.Workstream, graph, buildAuditContext(r, identity))
	if err != nil {
		if isUniqueViolation(err) {
			api.writeError(w, r, http.StatusConflict, "pipeline_name_exists")
			return
		}
		api.writeError(w, r, http.StatusBadRequest, "invalid_pipeline")
		return
	}

	w.Header().Set("Location", "/pipelines/"+pipeline.ID)
	api.writePipeline(w, r, http.StatusCreated, pipeline)
}

func (api *designerAPI) handleListPipelines(w http.ResponseWriter, r *http.Request) {
	projectID, ok := auth.ProjectIDFromContext(r.Context())
	if !ok || strings.TrimSpace(projectID) == "" {
		api.writeError(w, r, http.StatusBadRequest, "project_id_required")
		return
	}
	limit := clampInt(parseIntQuery(r, "limit", 100), 1, 500)
	workstream := strings.TrimSpace(r.URL.Query().Get("workstream"))

	pipelines, err := api.svc.ListPipelines(r.Context(), projectID, workstream, limit)
	if err != nil {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	items := make([]pipelinePayload, 0, len(pipelines))
	for _, p := range pipelines {
		payload, err := pipelinePayloadFromDomain(p)
		if err != nil {
			api.writeError(w, r, http.StatusInternalServerError, "internal_error")
			return
		}
		items = append(items, payload)
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"pipelines": items})
}

func (api *designerAPI) handleGetPipeline(w http.ResponseWriter, r *http.Request) {
	projectID, ok := auth.ProjectIDFromContext(r.Context())
	if !ok || strings.TrimSpace(projectID) == "" {
		api.writeError(w, r, http.StatusBadRequest, "project_id_required")
		return
	}
	pipelineID := strings.TrimSpace(r.PathValue("pipeline_id"))
	if pipelineID == "" {
		api.writeError(w, r, http.StatusBadRequest, "pipeline_id_required")
		return
	}

	pipeline, err := api.svc.GetPipeline(r.Context(), projectID, pipelineID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			api.writeError(w, r, http.StatusNotFound, "not_found")
			return
		}
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	api.writePipeline(w, r, http.StatusOK, pipeline)
}

func (api *designerAPI) handleUpdateGraph(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || strings.TrimSpace(identity.Subject) == "" {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	projectID, ok := auth.ProjectIDFromContext(r.Context())
	if !ok || strings.TrimSpace(projectID) == "" {
		api.writeError(w, r, http.StatusBadRequest, "project_id_required")
		return
	}
	pipelineID := strings.TrimSpace(r.PathValue("pipeline_id"))
	if pipelineID == "" {
		api.writeError(w, r, http.StatusBadRequest, "pipeline_id_required")
		return
	}

	var req updateGraphRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	graph, err := domain.UnmarshalGraphJSON(req.Graph)
	if err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_graph")
		return
	}

	if err := api.svc.UpdatePipelineGraph(r.Context(), projectID, pipelineID, graph, buildAuditContext(r, identity)); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			api.writeError(w, r, http.StatusNotFound, "not_found")
			return
		}
		api.writeError(w, r, http.StatusBadRequest, "invalid_graph")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (api *designerAPI) handleSaveStageConfig(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || strings.TrimSpace(identity.Subject) == "" {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	projectID, ok := auth.ProjectIDFromContext(r.Context())
	if !ok || strings.TrimSpace(projectID) == "" {
		api.writeError(w, r, http.StatusBadRequest, "project_id_required")
		return
	}
	pipelineID := strings.TrimSpace(r.PathValue("pipeline_id"))
	if pipelineID == "" {
		api.writeError(w, r, http.StatusBadRequest, "pipeline_id_required")
		return
	}

	key, err := domain.ParseStageKey(strings.TrimSpace(r.PathValue("stage_key")))
	if err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_stage_key")
		return
	}

	var req saveStageConfigRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}

	config := domain.StageConfig{
		ConnectorID:     strings.TrimSpace(req.ConnectorID),
		EnvironmentName: strings.TrimSpace(req.EnvironmentName),
		RepositoryURL:   strings.TrimSpace(req.RepositoryURL),
		Branch:          strings.TrimSpace(req.Branch),
		ApproverEmails:  req.ApproverEmails,
		JiraNumber:      strings.TrimSpace(req.JiraNumber),
	}

	if err := api.svc.SaveStageConfig(r.Context(), projectID, pipelineID, key, config, buildAuditContext(r, identity)); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			api.writeError(w, r, http.StatusNotFound, "not_found")
			return
		}
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (api *designerAPI) handleListStageConfigs(w http.ResponseWriter, r *http.Request) {
	projectID, ok := auth.ProjectIDFromContext(r.Context())
	if !ok || strings.TrimSpace(projectID) == "" {
		api.writeError(w, r, http.StatusBadRequest, "project_id_required")
		return
	}
	pipelineID := strings.TrimSpace(r.PathValue("pipeline_id"))
	if pipelineID == "" {
		api.writeError(w, r, http.StatusBadRequest, "pipeline_id_required")
		return
	}

	state, err := api.svc.StageConfigSnapshot(r.Context(), projectID, pipelineID)
	if err != nil {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	items := make([]stageConfigPayload, 0, len(state))
	for key, config := range state {
		items = append(items, stageConfigPayload{
			StageKey:        key.String(),
			ConnectorID:     config.ConnectorID,
			EnvironmentName: config.EnvironmentName,
			RepositoryURL:   config.RepositoryURL,
			Branch:          config.Branch,
			ApproverEmails:  config.ApproverEmails,
			JiraNumber:      config.JiraNumber,
		})
	}
	sortStageConfigPayloads(items)
	api.writeJSON(w, http.StatusOK, map[string]any{"stage_configs": items})
}

func (api *designerAPI) handleLayout(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || strings.TrimSpace(identity.Subject) == "" {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	projectID, ok := auth.ProjectIDFromContext(r.Context())
	if !ok || strings.TrimSpace(projectID) == "" {
		api.writeError(w, r, http.StatusBadRequest, "project_id_required")
		return
	}
	pipelineID := strings.TrimSpace(r.PathValue("pipeline_id"))
	if pipelineID == "" {
		api.writeError(w, r, http.StatusBadRequest, "pipeline_id_required")
		return
	}

	graph, err := api.svc.Layout(r.Context(), projectID, pipelineID, buildAuditContext(r, identity))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			api.writeError(w, r, http.StatusNotFound, "not_found")
			return
		}
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	graphJSON, err := domain.MarshalGraphJSON(graph)
	if err != nil {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	api.writeJSON(w, http.StatusOK, layoutResponse{PipelineID: pipelineID, Graph: graphJSON})
}

func (api *designerAPI) handleCompile(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || strings.TrimSpace(identity.Subject) == "" {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	projectID, ok := auth.ProjectIDFromContext(r.Context())
	if !ok || strings.TrimSpace(projectID) == "" {
		api.writeError(w, r, http.StatusBadRequest, "project_id_required")
		return
	}
	pipelineID := strings.TrimSpace(r.PathValue("pipeline_id"))
	if pipelineID == "" {
		api.writeError(w, r, http.StatusBadRequest, "pipeline_id_required")
		return
	}

	var req compileRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}

	selected := make([]compiler.SelectedArtifact, 0, len(req.SelectedArtifacts))
	for _, sa := range req.SelectedArtifacts {
		if strings.TrimSpace(sa.Package.ID) == "" || strings.TrimSpace(sa.Artifact.ID) == "" {
			api.writeError(w, r, http.StatusBadRequest, "invalid_artifact_selection")
			return
		}
		selected = append(selected, compiler.SelectedArtifact{
			Package: domain.PackageRef{
				ID:      sa.Package.ID,
				Name:    sa.Package.Name,
				Version: sa.Package.Version,
			},
			Artifact: domain.ArtifactRef{
				ID:      sa.Artifact.ID,
				Name:    sa.Artifact.Name,
				Version: sa.Artifact.Version,
				Type:    sa.Artifact.Type,
			},
		})
	}

	result, err := api.svc.Compile(r.Context(), projectID, pipelineID, selected, buildAuditContext(r, identity))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			api.writeError(w, r, http.StatusNotFound, "not_found")
			return
		}
		api.logger.Error("compile failed", "request_id", r.Header.Get("X-Request-Id"), "pipeline_id", pipelineID, "error", err.Error())
		api.writeError(w, r, http.StatusInternalServerError, "compile_failed")
		return
	}

	api.writeJSON(w, http.StatusCreated, compileResponse{
		DescriptorID: result.Record.ID,
		PipelineID:   result.Record.PipelineID,
		BuildVersion: result.Record.BuildVersion,
		ObjectKey:    result.Record.ObjectKey,
		Descriptor:   string(result.YAML),
		DownloadURL:  result.DownloadURL,
		CreatedAt:    result.Record.CreatedAt,
		CreatedBy:    result.Record.CreatedBy,
	})
}

func (api *designerAPI) handleListDescriptors(w http.ResponseWriter, r *http.Request) {
	projectID, ok := auth.ProjectIDFromContext(r.Context())
	if !ok || strings.TrimSpace(projectID) == "" {
		api.writeError(w, r, http.StatusBadRequest, "project_id_required")
		return
	}
	limit := clampInt(parseIntQuery(r, "limit", 100), 1, 500)
	pipelineID := strings.TrimSpace(r.URL.Query().Get("pipeline_id"))

	records, err := api.svc.ListDescriptors(r.Context(), projectID, pipelineID, limit)
	if err != nil {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	items := make([]descriptorRecordPayload, 0, len(records))
	for _, record := range records {
		items = append(items, descriptorRecordPayloadFromDomain(record))
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"descriptors": items})
}

func (api *designerAPI) handleGetDescriptor(w http.ResponseWriter, r *http.Request) {
	projectID, ok := auth.ProjectIDFromContext(r.Context())
	if !ok || strings.TrimSpace(projectID) == "" {
		api.writeError(w, r, http.StatusBadRequest, "project_id_required")
		return
	}
	descriptorID := strings.TrimSpace(r.PathValue("descriptor_id"))
	if descriptorID == "" {
		api.writeError(w, r, http.StatusBadRequest, "descriptor_id_required")
		return
	}

	record, err := api.svc.GetDescriptor(r.Context(), projectID, descriptorID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			api.writeError(w, r, http.StatusNotFound, "not_found")
			return
		}
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	api.writeJSON(w, http.StatusOK, descriptorRecordPayloadFromDomain(record))
}

func (api *designerAPI) writePipeline(w http.ResponseWriter, r *http.Request, status int, pipeline domain.Pipeline) {
	payload, err := pipelinePayloadFromDomain(pipeline)
	if err != nil {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	api.writeJSON(w, status, payload)
}

func pipelinePayloadFromDomain(pipeline domain.Pipeline) (pipelinePayload, error) {
	graphJSON, err := domain.MarshalGraphJSON(pipeline.Graph)
	if err != nil {
		return pipelinePayload{}, err
	}
	return pipelinePayload{
		PipelineID: pipeline.ID,
		ProjectID:  pipeline.ProjectID,
		Name:       pipeline.Name,
		Workstream: pipeline.Workstream,
		Graph:      graphJSON,
		CreatedAt:  pipeline.CreatedAt,
		CreatedBy:  pipeline.CreatedBy,
		UpdatedAt:  pipeline.UpdatedAt,
	}, nil
}

func descriptorRecordPayloadFromDomain(record repo.DescriptorRecord) descriptorRecordPayload {
	return descriptorRecordPayload{
		DescriptorID: record.ID,
		ProjectID:    record.ProjectID,
		PipelineID:   record.PipelineID,
		BuildVersion: record.BuildVersion,
		ObjectKey:    record.ObjectKey,
		Descriptor:   string(record.YAML),
		CreatedAt:    record.CreatedAt,
		CreatedBy:    record.CreatedBy,
	}
}

func sortStageConfigPayloads(items []stageConfigPayload) {
	sort.Slice(items, func(i, j int) bool { return items[i].StageKey < items[j].StageKey })
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("multiple JSON values")
	}
	return nil
}

func buildAuditContext(r *http.Request, identity auth.Identity) auditContext {
	return auditContext{
		Actor:     strings.TrimSpace(identity.Subject),
		RequestID: r.Header.Get("X-Request-Id"),
		IP:        requestIP(r.RemoteAddr),
		UserAgent: r.UserAgent(),
		Path:      r.URL.Path,
		Service:   "designer",
	}
}

func (api *designerAPI) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(body)
}

func (api *designerAPI) writeError(w http.ResponseWriter, r *http.Request, status int, code string) {
	api.writeJSON(w, status, map[string]any{
		"error":      code,
		"request_id": r.Header.Get("X-Request-Id"),
	})
}

func requestIP(remoteAddr string) net.IP {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return nil
	}
	return net.ParseIP(host)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func parseIntQuery(r *http.Request, key string, def int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return parsed
}

func clampInt(v int, min int, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
