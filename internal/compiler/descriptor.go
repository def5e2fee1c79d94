package compiler

import (
	"strings"
	"time"

	"github.com/pipecanvas-labs/pipecanvas-go/internal/domain"
)

// SelectedArtifact is one artifact the operator picked for deployment,
// carrying its owning package reference. The compiler groups the flat
// selection by package before embedding it.
type SelectedArtifact struct {
	Package  domain.PackageRef
	Artifact domain.ArtifactRef
}

// CompileInput is everything one descriptor compile consumes. The config
// state is an immutable snapshot; the compiler never mutates it.
type CompileInput struct {
	PipelineName      string
	Workstream        string
	Ordered           []OrderedGroup
	ConfigState       domain.StageConfigState
	SelectedArtifacts []SelectedArtifact
}

// CompileDescriptor combines the ordered structure with the stage
// configuration snapshot into a fresh descriptor. Stages without a
// configuration entry are omitted; a configured stage whose tool kind
// cannot be inferred gets a nil tool. Incomplete configuration never
// rejects a compile.
func CompileDescriptor(in CompileInput, now time.Time) domain.PipelineDescriptor {
	now = now.UTC()
	grouped := groupArtifactsByPackage(in.SelectedArtifacts)

	nodes := make([]domain.DescriptorNode, 0, len(in.Ordered))
	for _, og := range in.Ordered {
		node := domain.DescriptorNode{Name: displayName(og.Group)}
		for _, stage := range og.Stages {
			key := domain.StageKey{EnvironmentGroupID: og.Group.ID, StageID: stage.ID}
			cfg, ok := in.ConfigState[key]
			if !ok {
				continue
			}
			node.Stages = append(node.Stages, domain.DescriptorStage{
				Name:      displayName(stage),
				Tool:      inferTool(stage, cfg, grouped),
				Approvers: cfg.ApproverEmails,
			})
		}
		nodes = append(nodes, node)
	}

	return domain.PipelineDescriptor{
		PipelineName:      in.PipelineName,
		BuildVersion:      buildVersion(now),
		SelectedArtifacts: grouped,
		Nodes:             nodes,
		Workstream:        in.Workstream,
		GeneratedAt:       now,
	}
}

// buildVersion derives a compile token from the wall clock. Not stable
// across compiles; the engine treats it as an opaque build label.
func buildVersion(now time.Time) string {
	return now.Format("20060102.150405")
}

// inferTool guesses the tool kind by keyword matching against the stage's
// display name and category. The matching rules are carried over from the
// canvas as-is; renaming a stage can change the inferred kind.
// TODO: store an explicit tool-kind tag at stage creation and keep this
// only as a legacy-data fallback.
func inferTool(stage domain.Vertex, cfg domain.StageConfig, artifacts []domain.PackageArtifacts) *domain.StageTool {
	name := strings.ToUpper(displayName(stage))
	switch {
	case strings.Contains(name, "JIRA") || stage.Category == domain.CategoryPlan:
		return &domain.StageTool{
			Kind:      domain.ToolKindTicket,
			Name:      stage.Tool,
			TicketKey: cfg.JiraNumber,
		}
	case strings.Contains(name, "GITHUB") || stage.Category == domain.CategoryCode:
		tool := &domain.StageTool{
			Kind: domain.ToolKindSource,
			Name: stage.Tool,
		}
		if strings.TrimSpace(cfg.RepositoryURL) != "" {
			tool.RepositoryURL = cfg.RepositoryURL
			tool.Branch = cfg.Branch
		}
		return tool
	case strings.Contains(name, "DEPLOY") || strings.Contains(name, "INTEGRAT") ||
		stage.Category == domain.CategoryDeploy:
		return &domain.StageTool{
			Kind:            domain.ToolKindDeployment,
			Name:            stage.Tool,
			EnvironmentName: cfg.EnvironmentName,
			Artifacts:       artifacts,
		}
	}
	return nil
}

// groupArtifactsByPackage collapses the flat selection into one entry per
// package so the descriptor never repeats a package header. Package order
// follows first appearance in the selection.
func groupArtifactsByPackage(selected []SelectedArtifact) []domain.PackageArtifacts {
	if len(selected) == 0 {
		return nil
	}
	index := make(map[string]int, len(selected))
	var grouped []domain.PackageArtifacts
	for _, s := range selected {
		i, ok := index[s.Package.ID]
		if !ok {
			i = len(grouped)
			index[s.Package.ID] = i
			grouped = append(grouped, domain.PackageArtifacts{Package: s.Package})
		}
		grouped[i].Artifacts = append(grouped[i].Artifacts, s.Artifact)
	}
	return grouped
}

func displayName(v domain.Vertex) string {
	if strings.TrimSpace(v.Label) != "" {
		return v.Label
	}
	return v.ID
}
