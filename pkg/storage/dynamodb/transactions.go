package dynamodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/vtu-ledger/pkg/models"
	"github.com/chris/vtu-ledger/pkg/storage"
)

// CreateTransaction stores a new transaction. The id doubles as the
// idempotency key, so an existing id is reported as a duplicate.
func (s *Store) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	record, err := toTransactionRecord(tx)
	if err != nil {
		return fmt.Errorf("failed to encode transaction details: %w", err)
	}
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction: %w", err)
	}

	_, err = s.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.TransactionsTableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		var condCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckFailed) {
			return storage.ErrDuplicateTransaction
		}
		return fmt.Errorf("failed to create transaction in DynamoDB: %w", err)
	}
	return nil
}

// GetTransaction retrieves a single transaction by its ID.
func (s *Store) GetTransaction(ctx context.Context, txID string) (*models.Transaction, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"id": txID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transaction ID: %w", err)
	}

	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.TransactionsTableName),
		Key:       key,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction from DynamoDB: %w", err)
	}
	if result.Item == nil {
		return nil, storage.ErrTransactionNotFound
	}

	var record transactionRecord
	if err := attributevalue.UnmarshalMap(result.Item, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transaction: %w", err)
	}
	return record.toModel()
}

// UpdateTransactionStatus moves a pending transaction to a terminal state.
func (s *Store) UpdateTransactionStatus(ctx context.Context, txID string, update storage.TransactionUpdate) error {
	key, err := attributevalue.MarshalMap(map[string]string{"id": txID})
	if err != nil {
		return fmt.Errorf("failed to marshal transaction ID: %w", err)
	}
	values, err := attributevalue.MarshalMap(map[string]interface{}{
		":status":    string(update.Status),
		":pending":   string(models.TransactionPending),
		":reference": update.ProviderReference,
		":response":  update.ProviderResponse,
		":reason":    update.FailureReason,
		":updated":   toUnixNano(update.UpdatedAt),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal transaction update: %w", err)
	}

	_, err = s.Client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                           aws.String(s.TransactionsTableName),
		Key:                                 key,
		UpdateExpression:                    aws.String("SET #status = :status, provider_reference = :reference, provider_response = :response, failure_reason = :reason, updated_at = :updated"),
		ConditionExpression:                 aws.String("attribute_exists(id) AND #status = :pending"),
		ExpressionAttributeNames:            map[string]string{"#status": "status"},
		ExpressionAttributeValues:           values,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		var condCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckFailed) {
			if len(condCheckFailed.Item) == 0 {
				return storage.ErrTransactionNotFound
			}
			return storage.ErrTransactionNotPending
		}
		return fmt.Errorf("failed to update transaction %s: %w", txID, err)
	}
	return nil
}

// ListTransactionsByUserID queries the user's transactions newest first.
func (s *Store) ListTransactionsByUserID(ctx context.Context, userID string, limit int32) ([]models.Transaction, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.TransactionsTableName),
		IndexName:              aws.String(transactionsByUserIndex),
		KeyConditionExpression: aws.String("user_id = :user_id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":user_id": &types.AttributeValueMemberS{Value: userID},
		},
		ScanIndexForward: aws.Bool(false),
	}
	if limit > 0 {
		input.Limit = aws.Int32(limit)
	}

	result, err := s.Client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions by user ID: %w", err)
	}

	var records []transactionRecord
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transactions: %w", err)
	}

	txs := make([]models.Transaction, 0, len(records))
	for _, r := range records {
		tx, err := r.toModel()
		if err != nil {
			return nil, err
		}
		txs = append(txs, *tx)
	}
	return txs, nil
}
