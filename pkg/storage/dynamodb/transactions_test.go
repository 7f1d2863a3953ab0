package dynamodb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/vtu-ledger/pkg/models"
	"github.com/chris/vtu-ledger/pkg/storage"
	"github.com/chris/vtu-ledger/pkg/storage/dynamodb/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func sampleTransaction() *models.Transaction {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return &models.Transaction{
		ID:        models.TransactionIDFor("test-user", "req-1"),
		UserID:    "test-user",
		Type:      models.Airtime,
		Amount:    decimal.NewFromInt(500),
		Details:   models.AirtimeDetails{Phone: "08031234567", Network: "mtn"},
		RequestID: "req-1",
		Status:    models.TransactionPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCreateTransaction(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		mockClient.On("PutItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
			details, ok := in.Item["details"].(*types.AttributeValueMemberS)
			return aws.ToString(in.TableName) == "transactions" && ok && details.Value != ""
		})).Return(&dynamodb.PutItemOutput{}, nil)

		err := newTestStore(mockClient).CreateTransaction(context.Background(), sampleTransaction())

		assert.NoError(t, err)
		mockClient.AssertExpectations(t)
	})

	t.Run("Conflict", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		mockClient.On("PutItem", mock.Anything, mock.Anything).Return(nil, &types.ConditionalCheckFailedException{})

		err := newTestStore(mockClient).CreateTransaction(context.Background(), sampleTransaction())

		assert.ErrorIs(t, err, storage.ErrDuplicateTransaction)
	})
}

func TestGetTransaction(t *testing.T) {
	tx := sampleTransaction()
	record, err := toTransactionRecord(tx)
	require.NoError(t, err)
	item, err := attributevalue.MarshalMap(record)
	require.NoError(t, err)

	t.Run("Success", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{Item: item}, nil)

		got, err := newTestStore(mockClient).GetTransaction(context.Background(), tx.ID)

		require.NoError(t, err)
		assert.Equal(t, tx.Details, got.Details)
		assert.True(t, tx.Amount.Equal(got.Amount))
		assert.Equal(t, models.TransactionPending, got.Status)
	})

	t.Run("Not Found", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)

		_, err := newTestStore(mockClient).GetTransaction(context.Background(), tx.ID)

		assert.ErrorIs(t, err, storage.ErrTransactionNotFound)
	})
}

func TestUpdateTransactionStatus(t *testing.T) {
	update := storage.TransactionUpdate{
		Status:            models.TransactionSuccess,
		ProviderReference: "VND-1",
		UpdatedAt:         time.Date(2024, 3, 1, 9, 1, 0, 0, time.UTC),
	}

	t.Run("Success", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		mockClient.On("UpdateItem", mock.Anything, mock.Anything).Return(&dynamodb.UpdateItemOutput{}, nil)

		err := newTestStore(mockClient).UpdateTransactionStatus(context.Background(), "tx-1", update)

		assert.NoError(t, err)
		mockClient.AssertExpectations(t)
	})

	t.Run("Not Found", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		mockClient.On("UpdateItem", mock.Anything, mock.Anything).Return(nil, &types.ConditionalCheckFailedException{})

		err := newTestStore(mockClient).UpdateTransactionStatus(context.Background(), "tx-1", update)

		assert.ErrorIs(t, err, storage.ErrTransactionNotFound)
	})

	t.Run("Not Pending", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		mockClient.On("UpdateItem", mock.Anything, mock.Anything).Return(nil, &types.ConditionalCheckFailedException{
			Item: map[string]types.AttributeValue{"status": &types.AttributeValueMemberS{Value: "failed"}},
		})

		err := newTestStore(mockClient).UpdateTransactionStatus(context.Background(), "tx-1", update)

		assert.ErrorIs(t, err, storage.ErrTransactionNotPending)
	})
}

func TestListTransactionsByUserID(t *testing.T) {
	record, err := toTransactionRecord(sampleTransaction())
	require.NoError(t, err)
	item, err := attributevalue.MarshalMap(record)
	require.NoError(t, err)

	t.Run("Success", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		mockClient.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
			return aws.ToString(in.IndexName) == transactionsByUserIndex &&
				!aws.ToBool(in.ScanIndexForward) &&
				aws.ToInt32(in.Limit) == 10
		})).Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{item}}, nil)

		txs, err := newTestStore(mockClient).ListTransactionsByUserID(context.Background(), "test-user", 10)

		require.NoError(t, err)
		require.Len(t, txs, 1)
		assert.Equal(t, "req-1", txs[0].RequestID)
		mockClient.AssertExpectations(t)
	})

	t.Run("Storage Error", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		mockClient.On("Query", mock.Anything, mock.Anything).Return(nil, errors.New("some other storage error"))

		_, err := newTestStore(mockClient).ListTransactionsByUserID(context.Background(), "test-user", 10)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to query transactions by user ID")
	})
}
