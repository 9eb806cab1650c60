package market

import (
	"context"
	"errors"

	"flip-earn/internal/auth"
	"flip-earn/internal/repo"
)

// Withdraw moves amount out of the actor's available balance. The store
// applies the guard conditionally, so a concurrent withdrawal observing the
// same balance cannot jointly overdraw; the loser sees
// insufficient_balance and the ledger is left unchanged.
func (s *Service) Withdraw(ctx context.Context, actor auth.Identity, amount int64) (Balance, error) {
	if amount <= 0 {
		s.countWithdrawal("invalid_amount")
		return Balance{}, E(CodeInvalidAmount, "invalid amount")
	}

	user, err := s.store.GetUserByID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Balance{}, E(CodeNotFound, "user not found")
		}
		return Balance{}, Wrap(CodeInternal, "error withdrawing amount", err)
	}
	if amount > user.Available() {
		s.countWithdrawal("insufficient")
		return Balance{}, E(CodeInsufficientBalance, "insufficient balance")
	}

	updated, err := s.store.Withdraw(ctx, actor.UserID, amount)
	if err != nil {
		if errors.Is(err, repo.ErrInsufficientBalance) {
			s.countWithdrawal("insufficient")
			return Balance{}, E(CodeInsufficientBalance, "insufficient balance")
		}
		s.countWithdrawal("error")
		return Balance{}, Wrap(CodeInternal, "error withdrawing amount", err)
	}

	s.countWithdrawal("ok")
	s.logger.Info("withdrawal", "user_id", actor.UserID, "amount", amount, "available", updated.Available())
	return Balance{
		Earned:    updated.Earned,
		Withdrawn: updated.Withdrawn,
		Available: updated.Available(),
	}, nil
}

func (s *Service) countWithdrawal(status string) {
	if s.metrics != nil {
		s.metrics.Withdrawals.WithLabelValues(status).Inc()
	}
}
