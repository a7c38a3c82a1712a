package pageseal

import "github.com/rcrowley/go-metrics"

// Process-local operation counters, in the spirit of
// securememory.AllocCounter/InUseCounter: read-only, never exported to a
// remote sink by this package, useful for an operator attaching a
// metrics.Registry dump to diagnose a running process.
var (
	pagesEncryptedCounter = metrics.NewCounter()
	pagesDecryptedCounter = metrics.NewCounter()
	authFailureCounter    = metrics.NewCounter()
)

func init() {
	metrics.Register("pageseal.pages_encrypted", pagesEncryptedCounter)
	metrics.Register("pageseal.pages_decrypted", pagesDecryptedCounter)
	metrics.Register("pageseal.auth_failures", authFailureCounter)
}
