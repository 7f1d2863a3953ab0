package dynamodb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/chris/vtu-ledger/pkg/storage"
)

const (
	ledgerByUserIndex       = "user_id-created_at-index"
	transactionsByUserIndex = "user_id-created_at-index"
	paymentsByStatusIndex   = "status-created_at-index"

	conditionalCheckFailed = "ConditionalCheckFailed"
	transactionConflict    = "TransactionConflict"
)

// DynamoDBAPI is the subset of the DynamoDB client the store uses.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Store implements the Storage interface using AWS DynamoDB.
//
// Tables and keys:
//   - wallets: user_id
//   - ledger: user_id + reference, GSI user_id/created_at
//   - transactions: id, GSI user_id/created_at
//   - payments: tx_ref, GSI status/created_at
//
// created_at is a number (epoch nanoseconds) in every index.
type Store struct {
	Client                DynamoDBAPI
	WalletsTableName      string
	LedgerTableName       string
	TransactionsTableName string
	PaymentsTableName     string
}

// New creates a new Store.
func New(client DynamoDBAPI, walletsTable, ledgerTable, transactionsTable, paymentsTable string) *Store {
	return &Store{
		Client:                client,
		WalletsTableName:      walletsTable,
		LedgerTableName:       ledgerTable,
		TransactionsTableName: transactionsTable,
		PaymentsTableName:     paymentsTable,
	}
}

// Make sure we conform to the interface
var _ storage.Storage = (*Store)(nil)
