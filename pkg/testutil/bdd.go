package testutil

import "testing"

// Given, When, Then and And nest subtests so a scenario reads top to bottom in
// `go test -v` output.

func Given(t *testing.T, precondition string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Given "+precondition, fn)
}

func When(t *testing.T, action string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("When "+action, fn)
}

func Then(t *testing.T, outcome string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Then "+outcome, fn)
}

// And continues the enclosing step with another outcome or precondition.
func And(t *testing.T, step string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("And "+step, fn)
}
