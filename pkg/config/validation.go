package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"

	tiererrors "github.com/marmos91/tierfs/pkg/tier/errors"
	"github.com/marmos91/tierfs/pkg/union"
)

// Validate checks the configuration against its struct tags plus the
// constraints tags cannot express: the cron expression and the
// tie-break policy.
func Validate(cfg *Config) error {
	validate := validator.New()

	if err := validate.Struct(cfg); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			first := errs[0]
			return tiererrors.NewConfigInvalid(
				fmt.Sprintf("invalid value for %s (%s)", first.Namespace(), first.Tag()), err)
		}
		return tiererrors.NewConfigInvalid("configuration validation failed", err)
	}

	if _, err := cron.ParseStandard(cfg.Migration.Schedule); err != nil {
		return tiererrors.NewConfigInvalid(
			fmt.Sprintf("invalid migration schedule %q", cfg.Migration.Schedule), err)
	}

	if !union.TieBreak(cfg.Union.TieBreak).Valid() {
		return tiererrors.NewConfigInvalid(
			fmt.Sprintf("invalid union tie_break %q", cfg.Union.TieBreak), nil)
	}

	return nil
}
