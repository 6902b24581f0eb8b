package watcher

import (
	"fmt"
	"strings"
	"time"

	"satpipe/internal/config"
	"satpipe/internal/services"
)

// Group watches a set of product types, optionally narrowed to areas, and
// names the pipelines triggered for each claimed record.
type Group struct {
	Name           string
	ProductTypeIDs []int64
	AreaIDs        []int64
	Pipelines      []string
}

// Pollable reports whether the group triggers anything. Groups without
// pipelines only reserve their product ids.
func (g Group) Pollable() bool {
	return len(g.Pipelines) > 0
}

// GroupsFromConfig converts configured watch groups.
func GroupsFromConfig(groups []config.WatchGroup) []Group {
	out := make([]Group, 0, len(groups))
	for _, g := range groups {
		out = append(out, Group{
			Name:           g.Name,
			ProductTypeIDs: append([]int64(nil), g.ProductTypeIDs...),
			AreaIDs:        append([]int64(nil), g.AreaIDs...),
			Pipelines:      append([]string(nil), g.Pipelines...),
		})
	}
	return out
}

// ValidateGroups checks that every group names at least one product type and
// that no product type id is watched by two groups. A shared id would let
// two groups race for the same record and trigger pipelines twice.
func ValidateGroups(groups []Group) error {
	owner := make(map[int64]string)
	names := make(map[string]struct{}, len(groups))
	for i, g := range groups {
		name := strings.TrimSpace(g.Name)
		if name == "" {
			name = fmt.Sprintf("group[%d]", i)
		} else {
			if _, dup := names[name]; dup {
				return services.Wrap(services.ErrConfiguration, "", "validate watch groups", fmt.Sprintf("duplicate group name %q", name), nil)
			}
			names[name] = struct{}{}
		}
		if len(g.ProductTypeIDs) == 0 {
			return services.Wrap(services.ErrConfiguration, "", "validate watch groups", fmt.Sprintf("%s watches no product types", name), nil)
		}
		for _, id := range g.ProductTypeIDs {
			if id <= 0 {
				return services.Wrap(services.ErrConfiguration, "", "validate watch groups", fmt.Sprintf("%s has invalid product type id %d", name, id), nil)
			}
			if prev, taken := owner[id]; taken {
				return services.Wrap(services.ErrConfiguration, "", "validate watch groups",
					fmt.Sprintf("product type %d is watched by both %s and %s", id, prev, name), nil)
			}
			owner[id] = name
		}
		for _, p := range g.Pipelines {
			if strings.TrimSpace(p) == "" {
				return services.Wrap(services.ErrConfiguration, "", "validate watch groups", fmt.Sprintf("%s has an empty pipeline name", name), nil)
			}
		}
	}
	return nil
}

// OptionsFromConfig maps the [watcher] section to loop options.
func OptionsFromConfig(cfg config.Watcher) Options {
	return Options{
		PollInterval:       time.Duration(cfg.PollInterval) * time.Second,
		ErrorRetryInterval: time.Duration(cfg.ErrorRetryInterval) * time.Second,
		TriggerRate:        cfg.TriggerRate,
		TriggerBurst:       cfg.TriggerBurst,
	}
}
