package repoargs

import "github.com/fsdevblog/zenauction/internal/domain"

// CardUpdate optimistic-lock write of a card instance.
type CardUpdate struct {
	ID              int64
	ExpectedVersion int64
	OwnerID         int64
	State           domain.CardStateType
}
