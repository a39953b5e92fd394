package research

import (
	"errors"

	"deskresearch/repository"
)

func isEncoding(err error) bool {
	return errors.Is(err, ErrEncoding)
}

func isIndex(err error) bool {
	return errors.Is(err, repository.ErrIndex)
}
