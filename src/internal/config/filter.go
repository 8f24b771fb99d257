package config

import (
	"fmt"
	"regexp"
)

// Filter type constants
const (
	FilterTypeInclude = "include"
	FilterTypeExclude = "exclude"
)

// Filter logic constants
const (
	FilterLogicOr  = "or"
	FilterLogicAnd = "and"
)

// FilterConfig describes one regex filter applied to entries before
// they are broadcast to live-tail clients.
type FilterConfig struct {
	Type     string   `toml:"type"`
	Logic    string   `toml:"logic"`
	Patterns []string `toml:"patterns"`
}

func validateFilter(filterIndex int, cfg FilterConfig) error {
	switch cfg.Type {
	case FilterTypeInclude, FilterTypeExclude, "":
	default:
		return fmt.Errorf("filter[%d]: invalid type '%s' (must be 'include' or 'exclude')",
			filterIndex, cfg.Type)
	}

	switch cfg.Logic {
	case FilterLogicOr, FilterLogicAnd, "":
	default:
		return fmt.Errorf("filter[%d]: invalid logic '%s' (must be 'or' or 'and')",
			filterIndex, cfg.Logic)
	}

	// Empty patterns is valid, the filter passes everything
	for i, pattern := range cfg.Patterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("filter[%d] pattern[%d] '%s': invalid regex: %w",
				filterIndex, i, pattern, err)
		}
	}

	return nil
}
