// Package version identifies this build of the auditor.
package version

import (
	"fmt"
	"runtime"
)

const Version = "v1.0.0"

// UserAgent identifies this build of the auditor and its platform.
// Crawls send it unless configured otherwise.
func UserAgent() string {
	return fmt.Sprintf("SEOCrawl/%s (%s/%s)", Version, runtime.GOOS, runtime.GOARCH)
}
