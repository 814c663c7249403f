package test

import "testing"

func AssertEqual[T comparable](t *testing.T, expected, actual T) bool {
	t.Helper()

	if expected != actual {
		t.Errorf(""+
			"Not equal: \n"+
			"Expected: %v\n"+
			"Actual: %v", expected, actual)
		return false
	}

	return true
}

func AssertTrue(t *testing.T, condition bool, message string) bool {
	t.Helper()

	if !condition {
		t.Errorf("Expected true: %s", message)
		return false
	}

	return true
}

func AssertNoError(t *testing.T, err error) bool {
	t.Helper()

	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
		return false
	}

	return true
}
