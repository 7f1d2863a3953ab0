package storage

// ApiStore defines the operations the HTTP API and the purchase flow need.
// It composes other interfaces to provide a clear boundary for the API's data access.
type ApiStore interface {
	TransactionStore
	WalletStore
	LedgerReader
}
