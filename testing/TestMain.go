// Package testing flips the runtime into test mode for every test package
// that blank-imports it; app.InTestMode reads the flag to skip runtime side
// effects.
package testing

import (
	"os"
	stdtesting "testing"
)

func init() {
	_ = os.Setenv("ROLEGATE_TEST_MODE", "1")
}

func TestMain(m *stdtesting.M) {
	os.Exit(m.Run())
}
