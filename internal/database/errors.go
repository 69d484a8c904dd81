package database

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// IsRecordNotFound reports whether err is gorm's missing-record error.
func IsRecordNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicateKey reports whether err is a unique-key violation. gorm's
// TranslateError surfaces these as ErrDuplicatedKey; the string check
// covers drivers that slip through untranslated.
func IsDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
