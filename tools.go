//go:build tools

package tools

// Mocks under pkg/*/mocks are generated by mockery using .mockery.yaml.
// Run: go run github.com/vektra/mockery/v2
import (
	_ "github.com/vektra/mockery/v2"
)
