package itinerary

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidRequest is returned when a request fails validation.
var ErrInvalidRequest = errors.New("invalid request")

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func requestValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks the request before any provider is contacted.
func (r *Request) Validate() error {
	if err := requestValidator().Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	for day := range r.TransitOverrides {
		if day < 1 || day > r.Days {
			return fmt.Errorf("%w: transit override for day %d outside 1..%d", ErrInvalidRequest, day, r.Days)
		}
	}
	return nil
}
