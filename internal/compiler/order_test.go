package compiler

import (
	"reflect"
	"testing"

	"github.com/pipecanvas-labs/pipecanvas-go/internal/domain"
)

func TestOrderDeploymentGroupPriority(t *testing.T) {
	classified := classify(map[string]string{
		"prod":    "env_prod",
		"dev":     "env_dev",
		"staging": "env_staging",
		"qa":      "env_qa",
		"uat":     "env_uat",
	})
	a := ResolveOwnership(classified, nil)
	ordered := OrderDeployment(a)

	got := make([]string, 0, len(ordered))
	for _, og := range ordered {
		got = append(got, og.Group.ID)
	}
	want := []string{"dev", "qa", "staging", "uat", "prod"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("group order=%v, want %v", got, want)
	}
}

func TestOrderDeploymentUnrankedGroupsStaySortedLast(t *testing.T) {
	a := Assignment{
		Groups: []domain.Vertex{
			{ID: "sandbox2", Category: domain.CategoryEnvironment, Tool: "sandbox2"},
			{ID: "prod", Category: domain.CategoryEnvironment, Tool: "prod"},
			{ID: "sandbox1", Category: domain.CategoryEnvironment, Tool: "sandbox1"},
			{ID: "dev", Category: domain.CategoryEnvironment, Tool: "dev"},
		},
		Members: map[string][]domain.Vertex{},
	}
	ordered := OrderDeployment(a)

	got := make([]string, 0, len(ordered))
	for _, og := range ordered {
		got = append(got, og.Group.ID)
	}
	// Unranked groups keep their relative input order after all ranked ones.
	want := []string{"dev", "prod", "sandbox2", "sandbox1"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("group order=%v, want %v", got, want)
	}
}

func TestOrderDeploymentStageCategoryPriority(t *testing.T) {
	a := Assignment{
		Groups: []domain.Vertex{{ID: "dev", Category: domain.CategoryEnvironment, Tool: "dev"}},
		Members: map[string][]domain.Vertex{
			"dev": {
				{ID: "rel", Category: domain.CategoryRelease},
				{ID: "dep", Category: domain.CategoryDeploy},
				{ID: "appr", Category: domain.CategoryApproval},
				{ID: "tst", Category: domain.CategoryTest},
				{ID: "bld", Category: domain.CategoryBuild},
				{ID: "cod", Category: domain.CategoryCode},
				{ID: "pln", Category: domain.CategoryPlan},
			},
		},
	}
	ordered := OrderDeployment(a)

	got := stageIDs(ordered[0].Stages)
	want := []string{"pln", "cod", "bld", "tst", "appr", "dep", "rel"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("stage order=%v, want %v", got, want)
	}
}

func TestOrderDeploymentScenarioExplicitParents(t *testing.T) {
	// env_dev gets code before build; env_qa gets the deploy stage.
	classified := classify(map[string]string{
		"env1": "env_dev",
		"env2": "env_qa",
		"b1":   "build_jenkins",
		"c1":   "code_github",
		"d1":   "deploy_kubernetes",
	})
	for i := range classified {
		switch classified[i].ID {
		case "c1", "b1":
			classified[i].ParentGroupID = "env1"
		case "d1":
			classified[i].ParentGroupID = "env2"
		}
	}
	ordered := OrderDeployment(ResolveOwnership(classified, nil))

	if ordered[0].Group.ID != "env1" || ordered[1].Group.ID != "env2" {
		t.Fatalf("unexpected group order: %s, %s", ordered[0].Group.ID, ordered[1].Group.ID)
	}
	if got, want := stageIDs(ordered[0].Stages), []string{"c1", "b1"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("env1 stages=%v, want %v", got, want)
	}
	if got, want := stageIDs(ordered[1].Stages), []string{"d1"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("env2 stages=%v, want %v", got, want)
	}
}

func TestOrderDeploymentDeterministic(t *testing.T) {
	classified := classify(map[string]string{
		"qa":  "env_qa",
		"dev": "env_dev",
		"s1":  "test_selenium",
		"s2":  "build_jenkins",
	})
	for i := range classified {
		if classified[i].Category.IsStage() {
			classified[i].ParentGroupID = "qa"
		}
	}
	first := OrderDeployment(ResolveOwnership(classified, nil))
	second := OrderDeployment(ResolveOwnership(classified, nil))
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("ordering not deterministic:\n%v\nvs\n%v", first, second)
	}
}
