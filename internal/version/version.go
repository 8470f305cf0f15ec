// Package version хранит сборочную информацию, проставляемую через -ldflags.
package version

import "fmt"

var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// String возвращает строку с версией для стартового лога.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", version, gitCommit, buildDate)
}
