package executor

import "github.com/atomport/solver/internal/chains"

// Context is the state carried across attempt restarts. It survives the
// restart but not a process crash: published tx ids are the only part that
// matters for crash recovery, and those are also persisted on the
// transaction row.
type Context struct {
	Attempts       int
	Fee            *chains.Fee
	PublishedTxIDs []string
	// NonceEpoch bumps the reservation reference after a consumed nonce.
	// Replays within the same epoch still get their original nonce back.
	NonceEpoch int
}

func (c *Context) next(cause error) *RestartError {
	restarted := &Context{
		Attempts:       c.Attempts + 1,
		Fee:            c.Fee,
		PublishedTxIDs: c.PublishedTxIDs,
		NonceEpoch:     c.NonceEpoch,
	}
	return &RestartError{Ctx: restarted, Cause: cause}
}

func (c *Context) recordPublished(txID string) {
	for _, id := range c.PublishedTxIDs {
		if id == txID {
			return
		}
	}
	c.PublishedTxIDs = append(c.PublishedTxIDs, txID)
}
