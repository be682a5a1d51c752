package service

import (
	"context"
	"fmt"

	"github.com/fsdevblog/zenauction/internal/domain"
	"github.com/fsdevblog/zenauction/internal/repository/repoargs"
	"github.com/fsdevblog/zenauction/pkg/uow"
)

// CardOwnershipService guards card instances while they are offered. Every write is a version checked
// update, so two auctions can never lock the same card.
type CardOwnershipService struct {
	uow      uow.UOW
	cardRepo CardRepository
}

func NewCardOwnershipService(u uow.UOW) (*CardOwnershipService, error) {
	cardRepo, err := uow.GetRepositoryAs[CardRepository](u, uow.RepositoryName(repoargs.CardRepoName))
	if err != nil {
		return nil, err
	}
	return &CardOwnershipService{
		uow:      u,
		cardRepo: cardRepo,
	}, nil
}

func (s *CardOwnershipService) Get(ctx context.Context, cardID int64) (*domain.CardInstance, error) {
	card, err := s.cardRepo.FindByID(ctx, cardID)
	if err != nil {
		return nil, fmt.Errorf("getting card %d: %w", cardID, err)
	}
	return card, nil
}

// LockForAuction marks the card as on auction. Only the owner may lock it, and only once.
func (s *CardOwnershipService) LockForAuction(
	ctx context.Context,
	cardID int64,
	ownerID int64,
) (*domain.CardInstance, error) {
	return s.update(ctx, cardID, func(card *domain.CardInstance) (*repoargs.CardUpdate, error) {
		if card.OwnerID != ownerID {
			return nil, fmt.Errorf("%w: card %d belongs to another user", domain.ErrNotOwner, card.ID)
		}
		if card.State == domain.CardStateOnAuction {
			return nil, fmt.Errorf("%w: card %d", domain.ErrAlreadyLocked, card.ID)
		}
		return &repoargs.CardUpdate{OwnerID: card.OwnerID, State: domain.CardStateOnAuction}, nil
	})
}

// Unlock returns the card to its current owner. Unlocking an owned card is a no-op.
func (s *CardOwnershipService) Unlock(ctx context.Context, cardID int64) (*domain.CardInstance, error) {
	return s.update(ctx, cardID, func(card *domain.CardInstance) (*repoargs.CardUpdate, error) {
		if card.State == domain.CardStateOwned {
			return nil, nil
		}
		return &repoargs.CardUpdate{OwnerID: card.OwnerID, State: domain.CardStateOwned}, nil
	})
}

// TransferOwner hands a locked card to newOwnerID and unlocks it. Repeating a finished transfer is a no-op.
func (s *CardOwnershipService) TransferOwner(
	ctx context.Context,
	cardID int64,
	newOwnerID int64,
) (*domain.CardInstance, error) {
	return s.update(ctx, cardID, func(card *domain.CardInstance) (*repoargs.CardUpdate, error) {
		if card.State == domain.CardStateOwned {
			if card.OwnerID == newOwnerID {
				return nil, nil
			}
			return nil, fmt.Errorf(
				"%w: card %d is not on auction, owner %d", domain.ErrTransferIncomplete, card.ID, card.OwnerID,
			)
		}
		return &repoargs.CardUpdate{OwnerID: newOwnerID, State: domain.CardStateOwned}, nil
	})
}

// update loads the card inside a unit of work and applies the change returned by fn.
// A nil change keeps the card as is.
func (s *CardOwnershipService) update(
	ctx context.Context,
	cardID int64,
	fn func(card *domain.CardInstance) (*repoargs.CardUpdate, error),
) (*domain.CardInstance, error) {
	var result *domain.CardInstance
	txErr := s.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		repo, repoErr := uow.GetAs[CardRepository](tx, uow.RepositoryName(repoargs.CardRepoName))
		if repoErr != nil {
			return repoErr
		}
		card, err := repo.FindByID(c, cardID)
		if err != nil {
			return err //nolint:wrapcheck
		}
		change, err := fn(card)
		if err != nil {
			return err
		}
		if change == nil {
			result = card
			return nil
		}
		change.ID = card.ID
		change.ExpectedVersion = card.Version
		result, err = repo.Update(c, *change)
		return err //nolint:wrapcheck
	})
	if txErr != nil {
		return nil, fmt.Errorf("updating card %d: %w", cardID, txErr)
	}
	return result, nil
}
