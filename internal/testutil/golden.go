package testutil

import (
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Golden returns a goldie instance reading fixtures from testdata/golden
// with a .golden suffix.
//
// To regenerate golden files, run the package tests with -update:
//
//	go test ./internal/cli -update
func Golden(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

// AssertGolden compares actual with testdata/golden/{name}.golden.
func AssertGolden(t *testing.T, name string, actual []byte) {
	t.Helper()
	Golden(t).Assert(t, name, actual)
}
