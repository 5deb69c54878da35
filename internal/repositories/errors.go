package repositories

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Gopher0727/GroupKeeper/internal/apperr"
)

// translate maps gorm's sentinel errors onto the bot's taxonomy.
func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", op, apperr.ErrConflict)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
