// Package testing switches the process into test mode when imported by a
// test binary, so runtime side effects such as server startup are skipped.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

// defaults are applied only when the variable is not already set.
var defaults = map[string]string{
	"SPS_TEST_MODE": "1",
	"BACKEND_URL":   "http://127.0.0.1:0",
}

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		for key, value := range defaults {
			if _, ok := os.LookupEnv(key); !ok {
				_ = os.Setenv(key, value)
			}
		}
	})
}

func init() {
	ensureTestMode()
}

// TestMain can be called from a package's own TestMain.
func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
