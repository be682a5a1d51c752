package scheduler

import "errors"

var ErrNoDueAuctions = errors.New("no due auctions")
