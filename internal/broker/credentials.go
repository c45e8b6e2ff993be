package broker

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ErrValidation is returned when credentials are rejected before any network call.
var ErrValidation = errors.New("invalid credentials")

// TOTPLength is the number of digits of a time-based one-time code.
const TOTPLength = 6

var validate = validator.New(validator.WithRequiredStructEnabled())

// Credentials are the login form values.
type Credentials struct {
	ClientCode string `json:"clientcode" validate:"required"`
	Password   string `json:"password" validate:"required,min=8,max=32"`
	TOTP       string `json:"totp" validate:"required,len=6,number"`
}

// Validate reports ErrValidation naming the offending fields.
// Field values are never included in the error.
func (c Credentials) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		fields := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields = append(fields, fe.Field()+" ("+fe.Tag()+")")
		}
		return fmt.Errorf("%w: %v", ErrValidation, fields)
	}
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

// String masks the secrets so Credentials can be logged safely.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{ClientCode: %q, Password: ***, TOTP: ***}", c.ClientCode)
}
