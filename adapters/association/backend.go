package association

import (
	"fmt"
	"os"

	"loostaar/internal/config"
	"loostaar/internal/errors"
	"loostaar/ports"
)

// New constructs the configured backend. Missing settings are reported here,
// at startup, rather than on the first test call.
func New(cfg config.AssociationConfig) (ports.AssociationTest, error) {
	switch cfg.Backend {
	case "rscript":
		if cfg.Script == "" {
			return nil, errors.ConfigInvalid("STAAR_SCRIPT is required for the rscript backend")
		}
		if _, err := os.Stat(cfg.Script); err != nil {
			return nil, errors.ConfigInvalid(fmt.Sprintf("STAAR_SCRIPT %s is not readable: %v", cfg.Script, err))
		}
		return NewRscriptTest(cfg.RscriptPath, cfg.Script, cfg.WorkDir), nil
	case "http":
		if cfg.URL == "" {
			return nil, errors.ConfigInvalid("ASSOC_URL is required for the http backend")
		}
		return NewHTTPTest(cfg.URL, cfg.APIKey), nil
	default:
		return nil, errors.ConfigInvalid(fmt.Sprintf("unknown association backend %q", cfg.Backend))
	}
}

var (
	_ ports.AssociationTest = (*RscriptTest)(nil)
	_ ports.AssociationTest = (*HTTPTest)(nil)
)
