package repoargs

type RepositoryName string

const (
	AuctionRepoName      RepositoryName = "auction"
	BidRepoName          RepositoryName = "bid"
	LedgerRepoName       RepositoryName = "ledger"
	CardRepoName         RepositoryName = "card"
	NotificationRepoName RepositoryName = "notification"
)
