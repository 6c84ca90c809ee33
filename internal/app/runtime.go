package app

import (
	"os"
	"sync"
)

const testModeEnv = "LEDGERCORE_TEST_MODE"

var (
	testModeOnce sync.Once
	testMode     bool
)

// InTestMode reports whether binaries should skip connecting to Postgres and
// Redis. The flag is read once per process.
func InTestMode() bool {
	testModeOnce.Do(func() {
		testMode = os.Getenv(testModeEnv) == "1"
	})
	return testMode
}
