// internal/config/validator.go
//
// Thin wrapper around go-playground/validator.
//
// `loader.go` calls `validateStruct` immediately after it unmarshals the
// merged Koanf tree.  Any tag mismatch aborts startup, so the binary never
// runs with partial or malformed configuration.  Nested structs (HTTP,
// Database, Views) are walked automatically.

package config

import "github.com/go-playground/validator/v10"

var v = validator.New()

// validateStruct returns the first validation error, or nil on success.
func validateStruct(c *Config) error {
	return v.Struct(c)
}
