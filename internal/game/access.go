package game

import (
	"context"
	"time"

	"github.com/brainduel/api/internal/duel"
)

// resolveAccessType decides which entitlement pays for a new duel, checked
// in order: an active premium covers it; then the lifetime free allowance;
// then a purchased ticket. Counting created duels per access type inside the
// creation transaction keeps the quota race-free.
func (s *Service) resolveAccessType(ctx context.Context, tx *Tx, userID int64, now time.Time) (duel.AccessType, error) {
	premium, err := s.access.PremiumActive(ctx, userID, now)
	if err != nil {
		return "", err
	}
	if premium {
		return duel.AccessPremium, nil
	}

	freeUsed, err := tx.CountDuelsByCreatorAccess(ctx, userID, duel.AccessFree)
	if err != nil {
		return "", err
	}
	if freeUsed < duel.FreeCreates {
		return duel.AccessFree, nil
	}

	credited, err := s.access.CreditedTickets(ctx, userID, duel.TicketProductCode)
	if err != nil {
		return "", err
	}
	ticketsUsed, err := tx.CountDuelsByCreatorAccess(ctx, userID, duel.AccessPaidTicket)
	if err != nil {
		return "", err
	}
	if ticketsUsed < credited {
		return duel.AccessPaidTicket, nil
	}

	return "", ErrDuelPaymentRequired
}
