package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/vtu-ledger/pkg/models"
	"github.com/chris/vtu-ledger/pkg/storage"
)

// CreatePayment registers a pending payment keyed by its tx_ref.
func (s *Store) CreatePayment(ctx context.Context, p *models.Payment) error {
	item, err := attributevalue.MarshalMap(toPaymentRecord(p))
	if err != nil {
		return fmt.Errorf("failed to marshal payment: %w", err)
	}

	_, err = s.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.PaymentsTableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(tx_ref)"),
	})
	if err != nil {
		var condCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckFailed) {
			return storage.ErrPaymentExists
		}
		return fmt.Errorf("failed to create payment in DynamoDB: %w", err)
	}
	return nil
}

// GetPayment retrieves a payment by its tx_ref.
func (s *Store) GetPayment(ctx context.Context, txRef string) (*models.Payment, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"tx_ref": txRef})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payment key: %w", err)
	}

	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.PaymentsTableName),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get payment from DynamoDB: %w", err)
	}
	if result.Item == nil {
		return nil, storage.ErrPaymentNotFound
	}

	var record paymentRecord
	if err := attributevalue.UnmarshalMap(result.Item, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payment: %w", err)
	}
	return record.toModel()
}

// MarkPaymentFailed moves a pending payment to failed.
func (s *Store) MarkPaymentFailed(ctx context.Context, txRef, providerResponse string, at time.Time) error {
	key, err := attributevalue.MarshalMap(map[string]string{"tx_ref": txRef})
	if err != nil {
		return fmt.Errorf("failed to marshal payment key: %w", err)
	}
	values, err := attributevalue.MarshalMap(map[string]interface{}{
		":failed":   string(models.PaymentFailed),
		":pending":  string(models.PaymentPending),
		":response": providerResponse,
		":verified": toUnixNano(at),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal payment update: %w", err)
	}

	_, err = s.Client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                           aws.String(s.PaymentsTableName),
		Key:                                 key,
		UpdateExpression:                    aws.String("SET #status = :failed, provider_response = :response, verified_at = :verified"),
		ConditionExpression:                 aws.String("attribute_exists(tx_ref) AND #status = :pending"),
		ExpressionAttributeNames:            map[string]string{"#status": "status"},
		ExpressionAttributeValues:           values,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		var condCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckFailed) {
			if len(condCheckFailed.Item) == 0 {
				return storage.ErrPaymentNotFound
			}
			return storage.ErrPaymentNotPending
		}
		return fmt.Errorf("failed to mark payment %s failed: %w", txRef, err)
	}
	return nil
}

// ListPendingPayments queries the status index for the oldest pending
// payments that belong to provider and have an owner. Query applies Limit
// before the filter, so pages are followed until the batch is full or the
// index is exhausted.
func (s *Store) ListPendingPayments(ctx context.Context, provider string, limit int32) ([]models.Payment, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.PaymentsTableName),
		IndexName:              aws.String(paymentsByStatusIndex),
		KeyConditionExpression: aws.String("#status = :pending"),
		FilterExpression:       aws.String("#provider = :provider AND size(user_id) > :zero"),
		ExpressionAttributeNames: map[string]string{
			"#status":   "status",
			"#provider": "provider",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pending":  &types.AttributeValueMemberS{Value: string(models.PaymentPending)},
			":provider": &types.AttributeValueMemberS{Value: provider},
			":zero":     &types.AttributeValueMemberN{Value: "0"},
		},
		ScanIndexForward: aws.Bool(true),
	}
	if limit > 0 {
		input.Limit = aws.Int32(limit)
	}

	var payments []models.Payment
	for {
		result, err := s.Client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to query pending payments: %w", err)
		}

		var records []paymentRecord
		if err := attributevalue.UnmarshalListOfMaps(result.Items, &records); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payments: %w", err)
		}
		for _, r := range records {
			p, err := r.toModel()
			if err != nil {
				return nil, err
			}
			payments = append(payments, *p)
		}

		if len(result.LastEvaluatedKey) == 0 || (limit > 0 && int32(len(payments)) >= limit) {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}

	if limit > 0 && int32(len(payments)) > limit {
		payments = payments[:limit]
	}
	return payments, nil
}
