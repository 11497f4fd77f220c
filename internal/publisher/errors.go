package publisher

import (
	"fmt"

	"github.com/zsiec/moqtcore/internal/session"
)

// authMismatchError wraps session.ErrAuth with the track that produced
// the mismatch (spec §7 AuthError).
func authMismatchError(namespace, trackName string) error {
	return fmt.Errorf("%w: %s/%s", session.ErrAuth, namespace, trackName)
}
