package runner

import (
	"fmt"

	"github.com/prompteval/prompteval/pkg/config"
	"github.com/prompteval/prompteval/pkg/provider"
)

// BuildTargets resolves provider configs into runner targets. ids selects
// a subset by provider ID; when empty, every configured provider is built.
func BuildTargets(cfgs []config.ProviderConfig, ids []string, policy provider.RetryPolicy) ([]Target, error) {
	selected := cfgs
	if len(ids) > 0 {
		byID := make(map[string]config.ProviderConfig, len(cfgs))
		for _, pc := range cfgs {
			byID[pc.ID] = pc
		}
		selected = selected[:0:0]
		for _, id := range ids {
			pc, ok := byID[id]
			if !ok {
				// A suite may name a provider the config file doesn't
				// describe; build it from the ID alone.
				pc = config.ProviderConfig{ID: id}
			}
			selected = append(selected, pc)
		}
	}

	targets := make([]Target, 0, len(selected))
	for _, pc := range selected {
		p, err := provider.Build(pc.Spec(), policy)
		if err != nil {
			return nil, fmt.Errorf("building provider %q: %w", pc.ID, err)
		}

		fam, model, err := provider.ParseID(pc.ID)
		if err != nil {
			return nil, err
		}
		// http IDs carry a URL, not a model name.
		if fam == "http" || fam == "echo" {
			model = ""
		}

		targets = append(targets, Target{
			ID:          pc.ID,
			Provider:    p,
			Model:       model,
			Temperature: pc.Temperature,
			TopP:        pc.TopP,
			MaxTokens:   pc.MaxTokens,
		})
	}

	return targets, nil
}
