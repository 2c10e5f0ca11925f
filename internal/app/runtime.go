package app

import (
	"os"
	"sync"
)

const testModeEnv = "ROLEGATE_TEST_MODE"

var (
	testModeOnce sync.Once
	testMode     bool
)

// InTestMode reports whether the process runs under the test harness and
// should skip runtime side effects such as opening listeners. The flag is
// read lazily so the harness can set the environment before the first check.
func InTestMode() bool {
	testModeOnce.Do(func() {
		testMode = os.Getenv(testModeEnv) == "1"
	})
	return testMode
}
