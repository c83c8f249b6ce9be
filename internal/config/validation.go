package config

import (
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

const (
	// orgnumberLength is the number of digits in an organization number.
	orgnumberLength = 9
	// mod11MaxWeight is the weight after which modulus-11 weights wrap back to 2.
	mod11MaxWeight = 7
)

// CronParser parses scheduler expressions. The seconds field is optional so
// both five and six field expressions are accepted.
//
//nolint:gochecknoglobals // Shared between validation and the scheduler.
var CronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

//nolint:gochecknoglobals // validator caches struct metadata; one instance is meant to be shared.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Registration only fails for empty tags or nil functions.
	_ = v.RegisterValidation("orgnumber", func(fl validator.FieldLevel) bool {
		return ValidOrgnumber(fl.Field().String())
	})
	_ = v.RegisterValidation("cron", func(fl validator.FieldLevel) bool {
		_, err := CronParser.Parse(fl.Field().String())
		return err == nil
	})

	return v
}

// ValidOrgnumber reports whether s is nine digits with a valid modulus-11 control digit.
// Weights run 2..7 from the rightmost payload digit and wrap; a remainder giving
// control value 10 is invalid, 11 maps to 0.
func ValidOrgnumber(s string) bool {
	if len(s) != orgnumberLength {
		return false
	}

	sum, weight := 0, 2

	for i := orgnumberLength - 2; i >= 0; i-- {
		c := s[i]
		if c < '0' || c > '9' {
			return false
		}

		sum += int(c-'0') * weight

		weight++
		if weight > mod11MaxWeight {
			weight = 2
		}
	}

	last := s[orgnumberLength-1]
	if last < '0' || last > '9' {
		return false
	}

	control := 11 - sum%11

	switch control {
	case 11:
		control = 0
	case 10:
		return false
	}

	return int(last-'0') == control
}
