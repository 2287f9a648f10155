package ollama

import "time"

// SetBackoffBase shortens retry delays so tests exercise the retry path
// without real waits.
func SetBackoffBase(e *Embedder, d time.Duration) {
	e.backoffBase = d
}
