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

// CreateWallet creates a new wallet record in DynamoDB.
func (s *Store) CreateWallet(ctx context.Context, wallet *models.Wallet) error {
	walletAV, err := attributevalue.MarshalMap(toWalletRecord(wallet))
	if err != nil {
		return fmt.Errorf("failed to marshal wallet: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName:           aws.String(s.WalletsTableName),
		Item:                walletAV,
		ConditionExpression: aws.String("attribute_not_exists(user_id)"),
	}

	if _, err := s.Client.PutItem(ctx, input); err != nil {
		var condCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckFailed) {
			return storage.ErrWalletExists
		}
		return fmt.Errorf("failed to create wallet in DynamoDB: %w", err)
	}
	return nil
}

// GetWallet retrieves a user's wallet from DynamoDB by their user ID.
// Reads are strongly consistent so the version matches what a commit will check.
func (s *Store) GetWallet(ctx context.Context, userID string) (*models.Wallet, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal wallet user ID: %w", err)
	}

	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.WalletsTableName),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet from DynamoDB: %w", err)
	}
	if result.Item == nil {
		return nil, storage.ErrWalletNotFound
	}

	var record walletRecord
	if err := attributevalue.UnmarshalMap(result.Item, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wallet: %w", err)
	}
	return record.toModel()
}

// CommitWalletMutation writes the wallet, its ledger entries and an optional
// payment settlement in a single TransactWriteItems call.
//
// Item order is fixed: the wallet put first, then one put per entry, then the
// payment update. Cancellation reasons are matched back by that index.
func (s *Store) CommitWalletMutation(ctx context.Context, m storage.WalletMutation) error {
	walletAV, err := attributevalue.MarshalMap(toWalletRecord(&m.Wallet))
	if err != nil {
		return fmt.Errorf("failed to marshal wallet: %w", err)
	}
	expected, err := attributevalue.Marshal(m.ExpectedVersion)
	if err != nil {
		return fmt.Errorf("failed to marshal expected version: %w", err)
	}

	items := make([]types.TransactWriteItem, 0, len(m.Entries)+2)
	items = append(items, types.TransactWriteItem{
		Put: &types.Put{
			TableName:                 aws.String(s.WalletsTableName),
			Item:                      walletAV,
			ConditionExpression:       aws.String("#version = :expected"),
			ExpressionAttributeNames:  map[string]string{"#version": "version"},
			ExpressionAttributeValues: map[string]types.AttributeValue{":expected": expected},
		},
	})

	for _, entry := range m.Entries {
		entryAV, err := attributevalue.MarshalMap(toLedgerRecord(entry))
		if err != nil {
			return fmt.Errorf("failed to marshal ledger entry %s: %w", entry.Reference, err)
		}
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName:                aws.String(s.LedgerTableName),
				Item:                     entryAV,
				ConditionExpression:      aws.String("attribute_not_exists(#reference)"),
				ExpressionAttributeNames: map[string]string{"#reference": "reference"},
			},
		})
	}

	if m.Settlement != nil {
		update, err := s.settlePaymentItem(m.Settlement)
		if err != nil {
			return err
		}
		items = append(items, update)
	}

	_, err = s.Client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		var canceled *types.TransactionCanceledException
		if errors.As(err, &canceled) {
			return commitConflict(canceled.CancellationReasons, len(m.Entries), m.Settlement != nil, err)
		}
		return fmt.Errorf("failed to commit wallet mutation in DynamoDB: %w", err)
	}
	return nil
}

func (s *Store) settlePaymentItem(p *storage.PaymentSettlement) (types.TransactWriteItem, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"tx_ref": p.TxRef})
	if err != nil {
		return types.TransactWriteItem{}, fmt.Errorf("failed to marshal payment key: %w", err)
	}
	values, err := attributevalue.MarshalMap(map[string]interface{}{
		":success":  string(models.PaymentSuccess),
		":pending":  string(models.PaymentPending),
		":response": p.ProviderResponse,
		":verified": toUnixNano(p.VerifiedAt),
	})
	if err != nil {
		return types.TransactWriteItem{}, fmt.Errorf("failed to marshal payment update: %w", err)
	}
	return types.TransactWriteItem{
		Update: &types.Update{
			TableName:                 aws.String(s.PaymentsTableName),
			Key:                       key,
			UpdateExpression:          aws.String("SET #status = :success, provider_response = :response, verified_at = :verified"),
			ConditionExpression:       aws.String("#status = :pending"),
			ExpressionAttributeNames:  map[string]string{"#status": "status"},
			ExpressionAttributeValues: values,
		},
	}, nil
}

// commitConflict maps the first failed condition to a storage sentinel.
// A missing wallet item fails the version check as well. An item locked by a
// concurrent transaction is reported as a version conflict so the caller
// re-reads and retries.
func commitConflict(reasons []types.CancellationReason, entries int, settles bool, cause error) error {
	contended := false
	for i, reason := range reasons {
		switch aws.ToString(reason.Code) {
		case transactionConflict:
			contended = true
			continue
		case conditionalCheckFailed:
		default:
			continue
		}
		switch {
		case i == 0:
			return storage.ErrVersionConflict
		case i <= entries:
			return storage.ErrDuplicateEntry
		case settles && i == entries+1:
			return storage.ErrPaymentNotPending
		}
	}
	if contended {
		return storage.ErrVersionConflict
	}
	return fmt.Errorf("wallet mutation canceled: %w", cause)
}
