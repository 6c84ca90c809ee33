// Package guard switches binaries into test mode when imported by a test, so
// calling main does not dial Postgres or Redis.
package guard

import (
	"os"
	"sync"
)

const envTestMode = "LEDGERCORE_TEST_MODE"

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv(envTestMode) == "" {
			_ = os.Setenv(envTestMode, "1")
		}
	})
}
