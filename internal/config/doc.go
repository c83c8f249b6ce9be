// Package config loads, validates and saves the deploy manager YAML configuration.
//
// Validation uses go-playground/validator struct tags plus the custom
// "orgnumber" and "cron" tags. Unset timeouts, intervals and paths receive
// defaults before validation runs.
package config
