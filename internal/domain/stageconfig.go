package domain

import (
	"fmt"
	"strings"
)

// stageKeySeparator is the wire-format separator used by the configuration
// UI. Internally the key is a two-field struct with structural equality;
// the string form exists only at the API boundary.
const stageKeySeparator = "__"

// StageKey identifies one stage's configuration entry within a pipeline.
type StageKey struct {
	EnvironmentGroupID string
	StageID            string
}

func (k StageKey) String() string {
	return k.EnvironmentGroupID + stageKeySeparator + k.StageID
}

func (k StageKey) Validate() error {
	if strings.TrimSpace(k.EnvironmentGroupID) == "" {
		return fmt.Errorf("environment group id is required")
	}
	if strings.TrimSpace(k.StageID) == "" {
		return fmt.Errorf("stage id is required")
	}
	return nil
}

// ParseStageKey parses the wire form "${environmentGroupId}__${stageId}".
// The split is on the first separator occurrence; identifiers issued by the
// canvas never contain a double underscore.
func ParseStageKey(raw string) (StageKey, error) {
	parts := strings.SplitN(raw, stageKeySeparator, 2)
	if len(parts) != 2 {
		return StageKey{}, fmt.Errorf("stage key %q: want \"<group>__<stage>\"", raw)
	}
	key := StageKey{EnvironmentGroupID: parts[0], StageID: parts[1]}
	if err := key.Validate(); err != nil {
		return StageKey{}, fmt.Errorf("stage key %q: %w", raw, err)
	}
	return key, nil
}

// StageConfig is the operator-entered configuration for one stage. The
// configuration UI owns it; the compiler reads one immutable snapshot per
// compile pass.
type StageConfig struct {
	ConnectorID     string
	EnvironmentName string
	RepositoryURL   string
	Branch          string
	ApproverEmails  []string
	JiraNumber      string
}

// StageConfigState is the full configuration snapshot for one compile pass.
type StageConfigState map[StageKey]StageConfig
