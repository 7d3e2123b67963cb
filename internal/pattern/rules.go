// Package pattern matches platform-specific and generic HTML rules against
// an already-parsed page to fill in commerce/account fields the generic
// Structured Extractor cannot see, grounded on the goquery usage in
// internal/extract/html.go and a declarative-rule-table style consistent
// with the rest of the codebase's configuration.
package pattern

import (
	"embed"
	"fmt"
	"regexp"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var rulesFS embed.FS

// Rule is one declarative match: find Selector, optionally extract Regex's
// first capture group from its text, and record Field at Confidence if it
// beats whatever confidence already claimed that field.
type Rule struct {
	Selector   string  `yaml:"selector"`
	Regex      string  `yaml:"regex"`
	Field      string  `yaml:"field"`
	Confidence float32 `yaml:"confidence"`

	compiled *regexp.Regexp
}

// ruleTable maps a platform fingerprint ("shopify", "woocommerce", ...) to
// its rule set. "generic" always runs in addition to any platform-specific
// set.
type ruleTable map[string][]Rule

var (
	loadOnce   sync.Once
	loadedRules ruleTable
	loadErr    error
)

func load() (ruleTable, error) {
	loadOnce.Do(func() {
		data, err := rulesFS.ReadFile("rules.yaml")
		if err != nil {
			loadErr = fmt.Errorf("read rules.yaml: %w", err)
			return
		}
		var table ruleTable
		if err := yaml.Unmarshal(data, &table); err != nil {
			loadErr = fmt.Errorf("parse rules.yaml: %w", err)
			return
		}
		for platform, rules := range table {
			for i := range rules {
				if rules[i].Regex == "" {
					continue
				}
				re, err := regexp.Compile(rules[i].Regex)
				if err != nil {
					loadErr = fmt.Errorf("compile regex for %s/%s: %w", platform, rules[i].Field, err)
					return
				}
				rules[i].compiled = re
			}
		}
		loadedRules = table
	})
	return loadedRules, loadErr
}

// RulesFor returns the generic rules plus any platform-specific rules for
// fingerprint, generic rules last so platform-specific matches are applied
// first and therefore can't be starved by an equal-confidence generic rule
// processed earlier in FieldConfidence.Consider's strict ">" comparison.
func RulesFor(fingerprint string) ([]Rule, error) {
	table, err := load()
	if err != nil {
		return nil, err
	}
	var out []Rule
	if fingerprint != "" && fingerprint != "generic" {
		out = append(out, table[fingerprint]...)
	}
	out = append(out, table["generic"]...)
	return out, nil
}
