package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/johnahull/AthleteMetrics-sub002/internal/matching"
)

// PolicyEnvPrefix prefixes the policy environment overrides.
const PolicyEnvPrefix = "MATCH_POLICY_"

// LoadPolicy builds the matching policy by layering, lowest precedence first:
//  1. matching.DefaultPolicy()
//  2. the YAML file at path, when path is not empty
//  3. env vars MATCH_POLICY_<KEY>, e.g. MATCH_POLICY_NAME_ONLY_SCORE=72
//
// MATCH_POLICY_FILE itself is not a policy key and is ignored by step 3.
func LoadPolicy(path string) (matching.Policy, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return matching.Policy{}, fmt.Errorf("load policy file %s: %w", path, err)
		}
	}

	// MATCH_POLICY_LOW_CONFIDENCE_THRESHOLD -> low_confidence_threshold.
	// Underscores are kept so keys match the koanf tags on matching.Policy.
	envProvider := env.Provider(PolicyEnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, PolicyEnvPrefix))
		if key == "file" {
			return ""
		}
		return key
	})
	if err := k.Load(envProvider, nil); err != nil {
		return matching.Policy{}, fmt.Errorf("load policy env: %w", err)
	}

	p := matching.DefaultPolicy()
	if err := k.UnmarshalWithConf("", &p, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return matching.Policy{}, fmt.Errorf("decode policy: %w", err)
	}
	if err := p.Validate(); err != nil {
		return matching.Policy{}, fmt.Errorf("invalid matching policy: %w", err)
	}
	return p, nil
}
