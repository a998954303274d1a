package infra_test

import (
	"errors"

	"vote-tally/tally/domain"
)

func isNotFound(err error) bool { return errors.Is(err, domain.ErrNotFound) }
