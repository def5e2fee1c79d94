package domain

import "time"

// ToolKind discriminates the shape of a stage's tool block in the compiled
// descriptor. The execution engine switches on it.
type ToolKind string

const (
	ToolKindTicket     ToolKind = "ticket"
	ToolKindSource     ToolKind = "source"
	ToolKindDeployment ToolKind = "deployment"
)

// StageTool is the tagged union behind a stage entry's tool block. Kind
// selects which of the optional fields are meaningful; the codec emits only
// those.
type StageTool struct {
	Kind ToolKind
	Name string

	// Kind == ToolKindTicket
	TicketKey string

	// Kind == ToolKindSource
	RepositoryURL string
	Branch        string

	// Kind == ToolKindDeployment
	EnvironmentName string
	Artifacts       []PackageArtifacts
}

// DescriptorStage is one stage entry in the compiled descriptor. A nil Tool
// records an inference failure as explicit absence, never an error.
type DescriptorStage struct {
	Name      string
	Tool      *StageTool
	Approvers []string
}

// DescriptorNode is one environment group entry, stages in category order.
type DescriptorNode struct {
	Name   string
	Stages []DescriptorStage
}

type PackageRef struct {
	ID      string
	Name    string
	Version string
}

type ArtifactRef struct {
	ID      string
	Name    string
	Version string
	Type    string
}

// PackageArtifacts groups selected artifacts under one package header.
type PackageArtifacts struct {
	Package   PackageRef
	Artifacts []ArtifactRef
}

// PipelineDescriptor is the compiled output handed to the execution engine.
// Created fresh on every compile; never mutated, only replaced.
type PipelineDescriptor struct {
	PipelineName      string
	BuildVersion      string
	SelectedArtifacts []PackageArtifacts
	Nodes             []DescriptorNode
	Workstream        string
	GeneratedAt       time.Time
}
