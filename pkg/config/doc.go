// Package config loads and validates the controller's YAML configuration.
//
// Every tunable has a default; a minimal file only needs the CAN channel and
// the filter rules. Validation errors are startup errors: the controller
// refuses to run on a malformed rule rather than discovering it on the bus.
package config
