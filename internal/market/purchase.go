package market

import (
	"context"
	"errors"

	"flip-earn/internal/auth"
	"flip-earn/internal/repo"
)

// PurchaseAccount executes the purchase: the order is created with the
// price snapshot, the listing flips to sold and the seller is credited, all
// inside one store transaction. Precondition order: not found, not
// available, self purchase. The store-level conditional update decides the
// winner when two buyers race; losers see not_available.
func (s *Service) PurchaseAccount(ctx context.Context, actor auth.Identity, listingID string) (*repo.Order, error) {
	listing, err := s.store.GetListingByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, E(CodeNotFound, "listing not found")
		}
		return nil, Wrap(CodeInternal, "error purchasing account", err)
	}
	if listing.Status != repo.StatusActive {
		s.countPurchase("not_available")
		return nil, E(CodeNotAvailable, "listing is not available for purchase")
	}
	if listing.OwnerID == actor.UserID {
		s.countPurchase("self_purchase")
		return nil, E(CodeSelfPurchase, "you cannot purchase your own listing")
	}

	order, err := s.store.Purchase(ctx, listingID, actor.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrNotAvailable) {
			s.countPurchase("not_available")
			return nil, E(CodeNotAvailable, "listing is not available for purchase")
		}
		s.countPurchase("error")
		return nil, Wrap(CodeInternal, "error purchasing account", err)
	}

	s.invalidatePublicFeed(ctx)
	s.countPurchase("ok")
	if s.metrics != nil {
		s.metrics.PurchaseAmount.Add(float64(order.Amount))
	}
	s.logger.Info("listing purchased", "listing_id", listingID, "buyer_id", actor.UserID, "amount", order.Amount)
	return order, nil
}

// UserOrders returns the actor's paid orders with their listings and, when
// submitted, the listing credentials for handoff.
func (s *Service) UserOrders(ctx context.Context, actor auth.Identity) ([]repo.OrderWithListing, error) {
	orders, err := s.store.ListUserOrders(ctx, actor.UserID)
	if err != nil {
		return nil, Wrap(CodeInternal, "error fetching orders", err)
	}
	return orders, nil
}

func (s *Service) countPurchase(status string) {
	if s.metrics != nil {
		s.metrics.Purchases.WithLabelValues(status).Inc()
	}
}
