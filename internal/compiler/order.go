package compiler

import (
	"sort"

	"github.com/pipecanvas-labs/pipecanvas-go/internal/domain"
)

// deploymentRank fixes the relative order of known deployment stages.
// Unranked environment types sort after all ranked ones, keeping their
// relative input order.
var deploymentRank = map[string]int{
	"dev":     0,
	"qa":      1,
	"staging": 2,
	"uat":     3,
	"prod":    4,
}

// categoryRank fixes the relative order of stages inside a group.
var categoryRank = map[domain.Category]int{
	domain.CategoryPlan:     0,
	domain.CategoryCode:     1,
	domain.CategoryBuild:    2,
	domain.CategoryTest:     3,
	domain.CategoryApproval: 4,
	domain.CategoryDeploy:   5,
	domain.CategoryRelease:  6,
}

// OrderedGroup is one environment group with its stages in category order.
type OrderedGroup struct {
	Group  domain.Vertex
	Stages []domain.Vertex
}

// OrderDeployment sorts the assignment into deployment order. Both sorts
// are stable, so equal-priority entries preserve input order; absent
// categories simply produce shorter lists.
func OrderDeployment(a Assignment) []OrderedGroup {
	ordered := make([]OrderedGroup, 0, len(a.Groups))
	for _, g := range a.Groups {
		stages := append([]domain.Vertex(nil), a.Members[g.ID]...)
		sort.SliceStable(stages, func(i, j int) bool {
			return stageRank(stages[i]) < stageRank(stages[j])
		})
		ordered = append(ordered, OrderedGroup{Group: g, Stages: stages})
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return groupRank(ordered[i].Group) < groupRank(ordered[j].Group)
	})
	return ordered
}

func groupRank(g domain.Vertex) int {
	if rank, ok := deploymentRank[g.Tool]; ok {
		return rank
	}
	return len(deploymentRank)
}

func stageRank(s domain.Vertex) int {
	if rank, ok := categoryRank[s.Category]; ok {
		return rank
	}
	return len(categoryRank)
}
