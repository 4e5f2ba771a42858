package testutil

import (
	"os"
	"testing"
)

// ReadTestOutputData loads a captured smartctl output fixture from testdata.
func ReadTestOutputData(filename string) ([]byte, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	return data, nil
}

// MustReadTestOutputData is ReadTestOutputData for tests that cannot proceed
// without the fixture.
func MustReadTestOutputData(t *testing.T, filename string) []byte {
	t.Helper()

	data, err := ReadTestOutputData(filename)
	if err != nil {
		t.Fatalf("Error reading test data: %s", err)
	}

	return data
}
