package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hirewire/pipeline-go/domain/approval"
	"github.com/hirewire/pipeline-go/domain/rule"
)

// RuleFile is the on-disk format for automation rules and approval
// flow definitions.
type RuleFile struct {
	Rules []rule.Rule     `yaml:"rules" json:"rules"`
	Flows []approval.Flow `yaml:"flows" json:"flows"`
}

// LoadRuleFile loads and validates a single rule file.
func LoadRuleFile(path string) (*RuleFile, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied path
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read rule file: %w", err)
	}

	expanded, err := (&envExpander{}).Expand(string(data))
	if err != nil {
		return nil, err
	}

	rf := &RuleFile{}
	if err := yaml.Unmarshal([]byte(expanded), rf); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidFormat, path, err)
	}

	for i := range rf.Rules {
		if err := rf.Rules[i].Validate(); err != nil {
			return nil, fmt.Errorf("%s: rule %q: %w", path, rf.Rules[i].ID, err)
		}
	}
	for _, f := range rf.Flows {
		if f.ID == "" {
			return nil, fmt.Errorf("%w: %s: flow missing id", ErrValidationFailed, path)
		}
		if len(f.Steps) == 0 {
			return nil, fmt.Errorf("%w: %s: flow %q has no steps", ErrValidationFailed, path, f.ID)
		}
	}
	return rf, nil
}

// LoadRules loads rule definitions from a yaml file or a directory of
// yaml files. Directory entries are loaded in lexical order; a rule ID
// appearing twice is an error.
func LoadRules(path string) (*RuleFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to access rule path: %w", err)
	}

	if !info.IsDir() {
		return LoadRuleFile(path)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	merged := &RuleFile{}
	seenRules := make(map[string]string)
	seenFlows := make(map[string]string)
	for _, name := range names {
		full := filepath.Join(path, name)
		rf, err := LoadRuleFile(full)
		if err != nil {
			return nil, err
		}
		for _, r := range rf.Rules {
			if prev, ok := seenRules[r.ID]; ok {
				return nil, fmt.Errorf("%w: rule %q defined in both %s and %s",
					ErrValidationFailed, r.ID, prev, name)
			}
			seenRules[r.ID] = name
			merged.Rules = append(merged.Rules, r)
		}
		for _, f := range rf.Flows {
			if prev, ok := seenFlows[f.ID]; ok {
				return nil, fmt.Errorf("%w: flow %q defined in both %s and %s",
					ErrValidationFailed, f.ID, prev, name)
			}
			seenFlows[f.ID] = name
			merged.Flows = append(merged.Flows, f)
		}
	}
	return merged, nil
}
