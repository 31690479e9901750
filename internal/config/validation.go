package config

import (
	"errors"
	"fmt"

	"github.com/Project-Sylos/Mirage/internal/types"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks the configuration using struct tags plus the rules tags
// cannot express.
func Validate(cfg *types.Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	return validateCustomRules(cfg)
}

func validateCustomRules(cfg *types.Config) error {
	if cfg.Items.Type != "memory" && cfg.Items.DSN == "" {
		return fmt.Errorf("items.dsn is required for store type %q", cfg.Items.Type)
	}

	if cfg.Upload.Ledger == "badger" && cfg.Upload.LedgerPath == "" {
		return fmt.Errorf("upload.ledger_path is required for the badger ledger")
	}

	if cfg.Seed.Enabled && cfg.Seed.Sites > 0 && cfg.Seed.MaxDepth < 1 {
		return fmt.Errorf("seed.max_depth must be at least 1, got %d", cfg.Seed.MaxDepth)
	}

	return nil
}

func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
