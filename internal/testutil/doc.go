// Package testutil provides deterministic clocks and identifier generators
// for tests and golden-trace scenarios.
package testutil
