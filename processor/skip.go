package processor

import (
	"context"

	"github.com/hazyhaar/linkreach/scrape"
)

// skipReason decides whether a candidate is skipped before any interaction,
// and why. The checks run in a fixed order so the reported reason is stable:
// card state first, then the dedup ledger.
func (p *Processor) skipReason(ctx context.Context, c scrape.Candidate) (string, error) {
	switch {
	case c.AlreadyConnected:
		return SkipAlreadyConnected, nil
	case c.PendingInvite:
		return SkipPendingInvite, nil
	case !c.HasConnectAction:
		return SkipNoConnectAction, nil
	}
	key, err := scrape.IdentityKey(c)
	if err != nil {
		return "", err
	}
	done, err := p.cfg.Store.IsProcessed(ctx, key)
	if err != nil {
		return "", err
	}
	if done {
		return SkipAlreadyProcessed, nil
	}
	return "", nil
}
