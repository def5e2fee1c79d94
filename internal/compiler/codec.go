package compiler

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pipecanvas-labs/pipecanvas-go/internal/domain"
)

// The YAML emitted here is the sole contract with the execution engine.
// Field names and nesting are fixed; change them and deployed engines stop
// parsing descriptors.

// MarshalDescriptor serializes a descriptor with stable field names.
func MarshalDescriptor(d domain.PipelineDescriptor) ([]byte, error) {
	payload := descriptorPayload{
		PipelineName:      d.PipelineName,
		BuildVersion:      d.BuildVersion,
		SelectedArtifacts: packagesPayloadFromDomain(d.SelectedArtifacts),
		Nodes:             make([]nodePayload, 0, len(d.Nodes)),
		Workstream:        d.Workstream,
		GeneratedAt:       d.GeneratedAt.UTC().Format(time.RFC3339),
	}
	for _, node := range d.Nodes {
		np := nodePayload{Name: node.Name, Stages: make([]stagePayload, 0, len(node.Stages))}
		for _, stage := range node.Stages {
			tool, err := toolPayloadFromDomain(stage.Tool)
			if err != nil {
				return nil, err
			}
			np.Stages = append(np.Stages, stagePayload{
				Name:      stage.Name,
				Tool:      tool,
				Approvers: stage.Approvers,
			})
		}
		payload.Nodes = append(payload.Nodes, np)
	}
	return yaml.Marshal(payload)
}

// UnmarshalDescriptor parses a serialized descriptor back into the domain
// form, mirroring what the execution engine reads.
func UnmarshalDescriptor(raw []byte) (domain.PipelineDescriptor, error) {
	var payload descriptorPayload
	if err := yaml.Unmarshal(raw, &payload); err != nil {
		return domain.PipelineDescriptor{}, err
	}

	out := domain.PipelineDescriptor{
		PipelineName:      payload.PipelineName,
		BuildVersion:      payload.BuildVersion,
		SelectedArtifacts: packagesDomainFromPayload(payload.SelectedArtifacts),
		Workstream:        payload.Workstream,
	}
	if payload.GeneratedAt != "" {
		generatedAt, err := time.Parse(time.RFC3339, payload.GeneratedAt)
		if err != nil {
			return domain.PipelineDescriptor{}, fmt.Errorf("generatedAt: %w", err)
		}
		out.GeneratedAt = generatedAt
	}
	for _, np := range payload.Nodes {
		node := domain.DescriptorNode{Name: np.Name}
		for _, sp := range np.Stages {
			tool, err := toolDomainFromPayload(sp.Tool)
			if err != nil {
				return domain.PipelineDescriptor{}, err
			}
			node.Stages = append(node.Stages, domain.DescriptorStage{
				Name:      sp.Name,
				Tool:      tool,
				Approvers: sp.Approvers,
			})
		}
		out.Nodes = append(out.Nodes, node)
	}
	return out, nil
}

type descriptorPayload struct {
	PipelineName      string                    `yaml:"pipelineName"`
	BuildVersion      string                    `yaml:"buildVersion"`
	SelectedArtifacts []packageArtifactsPayload `yaml:"selectedArtifacts,omitempty"`
	Nodes             []nodePayload             `yaml:"nodes"`
	Workstream        string                    `yaml:"workstream,omitempty"`
	GeneratedAt       string                    `yaml:"generatedAt"`
}

type nodePayload struct {
	Name   string         `yaml:"name"`
	Stages []stagePayload `yaml:"stages"`
}

type stagePayload struct {
	Name      string       `yaml:"name"`
	Tool      *toolPayload `yaml:"tool"`
	Approvers []string     `yaml:"approvers,omitempty"`
}

type toolPayload struct {
	Kind          string                    `yaml:"kind"`
	Name          string                    `yaml:"name,omitempty"`
	TicketKey     string                    `yaml:"ticketKey,omitempty"`
	RepositoryURL string                    `yaml:"repositoryUrl,omitempty"`
	Branch        string                    `yaml:"branch,omitempty"`
	Environment   string                    `yaml:"environment,omitempty"`
	Artifacts     []packageArtifactsPayload `yaml:"artifacts,omitempty"`
}

type packageArtifactsPayload struct {
	Package   packageRefPayload  `yaml:"package"`
	Artifacts []artifactsPayload `yaml:"artifacts"`
}

type packageRefPayload struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type artifactsPayload struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Type    string `yaml:"type"`
}

// toolPayloadFromDomain switches exhaustively on the tool kind so every
// emitted block carries exactly the fields that kind defines.
func toolPayloadFromDomain(tool *domain.StageTool) (*toolPayload, error) {
	if tool == nil {
		return nil, nil
	}
	switch tool.Kind {
	case domain.ToolKindTicket:
		return &toolPayload{
			Kind:      string(tool.Kind),
			Name:      tool.Name,
			TicketKey: tool.TicketKey,
		}, nil
	case domain.ToolKindSource:
		return &toolPayload{
			Kind:          string(tool.Kind),
			Name:          tool.Name,
			RepositoryURL: tool.RepositoryURL,
			Branch:        tool.Branch,
		}, nil
	case domain.ToolKindDeployment:
		return &toolPayload{
			Kind:        string(tool.Kind),
			Name:        tool.Name,
			Environment: tool.EnvironmentName,
			Artifacts:   packagesPayloadFromDomain(tool.Artifacts),
		}, nil
	default:
		return nil, fmt.Errorf("unknown tool kind %q", tool.Kind)
	}
}

func toolDomainFromPayload(tool *toolPayload) (*domain.StageTool, error) {
	if tool == nil {
		return nil, nil
	}
	switch domain.ToolKind(tool.Kind) {
	case domain.ToolKindTicket:
		return &domain.StageTool{
			Kind:      domain.ToolKindTicket,
			Name:      tool.Name,
			TicketKey: tool.TicketKey,
		}, nil
	case domain.ToolKindSource:
		return &domain.StageTool{
			Kind:          domain.ToolKindSource,
			Name:          tool.Name,
			RepositoryURL: tool.RepositoryURL,
			Branch:        tool.Branch,
		}, nil
	case domain.ToolKindDeployment:
		return &domain.StageTool{
			Kind:            domain.ToolKindDeployment,
			Name:            tool.Name,
			EnvironmentName: tool.Environment,
			Artifacts:       packagesDomainFromPayload(tool.Artifacts),
		}, nil
	default:
		return nil, fmt.Errorf("unknown tool kind %q", tool.Kind)
	}
}

func packagesPayloadFromDomain(packages []domain.PackageArtifacts) []packageArtifactsPayload {
	if len(packages) == 0 {
		return nil
	}
	out := make([]packageArtifactsPayload, 0, len(packages))
	for _, p := range packages {
		pp := packageArtifactsPayload{
			Package: packageRefPayload{
				ID:      p.Package.ID,
				Name:    p.Package.Name,
				Version: p.Package.Version,
			},
			Artifacts: make([]artifactsPayload, 0, len(p.Artifacts)),
		}
		for _, a := range p.Artifacts {
			pp.Artifacts = append(pp.Artifacts, artifactsPayload{
				ID:      a.ID,
				Name:    a.Name,
				Version: a.Version,
				Type:    a.Type,
			})
		}
		out = append(out, pp)
	}
	return out
}

func packagesDomainFromPayload(packages []packageArtifactsPayload) []domain.PackageArtifacts {
	if len(packages) == 0 {
		return nil
	}
	out := make([]domain.PackageArtifacts, 0, len(packages))
	for _, p := range packages {
		pa := domain.PackageArtifacts{
			Package: domain.PackageRef{
				ID:      p.Package.ID,
				Name:    p.Package.Name,
				Version: p.Package.Version,
			},
		}
		for _, a := range p.Artifacts {
			pa.Artifacts = append(pa.Artifacts, domain.ArtifactRef{
				ID:      a.ID,
				Name:    a.Name,
				Version: a.Version,
				Type:    a.Type,
			})
		}
		out = append(out, pa)
	}
	return out
}
