package dynamodb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/vtu-ledger/pkg/models"
)

// ListLedgerEntries queries the user's ledger entries newest first.
func (s *Store) ListLedgerEntries(ctx context.Context, userID string, limit int32) ([]models.LedgerEntry, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.LedgerTableName),
		IndexName:              aws.String(ledgerByUserIndex),
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
		return nil, fmt.Errorf("failed to query ledger entries: %w", err)
	}

	var records []ledgerRecord
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ledger entries: %w", err)
	}

	entries := make([]models.LedgerEntry, 0, len(records))
	for _, r := range records {
		entry, err := r.toModel()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
