package testutil

import "testing"

// Given, When and Then nest subtests so a failure reads as a sentence:
// "Given a draft/When submitted/Then ...".
func Given(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	step(t, "Given", desc, fn)
}

func When(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	step(t, "When", desc, fn)
}

func Then(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	step(t, "Then", desc, fn)
}

func step(t *testing.T, keyword, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run(keyword+" "+desc, fn)
}
