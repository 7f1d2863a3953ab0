// Package directory reads user and settings documents owned by the wider
// platform from MongoDB.
package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chris/vtu-ledger/pkg/models"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection    = "users"
	settingsCollection = "settings"
	rewardsSettingsID  = "rewards"
)

// Connect connects to the mongodb server and returns the client.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	// Set the server selection timeout to 5 seconds.
	timeout := time.Second * 5
	opts := &options.ClientOptions{ServerSelectionTimeout: &timeout}

	client, err := mongo.Connect(ctx, opts.ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return client, nil
}

// Directory serves referrer lookups and reward settings.
type Directory struct {
	users    *mongo.Collection
	settings *mongo.Collection
	defaults models.RewardSettings
}

// New uses defaults for any setting the stored document leaves out, and for
// all of them when the document does not exist.
func New(db *mongo.Database, defaults models.RewardSettings) *Directory {
	return &Directory{
		users:    db.Collection(usersCollection),
		settings: db.Collection(settingsCollection),
		defaults: defaults,
	}
}

type userDoc struct {
	ID         string `bson:"_id"`
	ReferredBy string `bson:"referred_by,omitempty"`
}

// ReferrerOf returns the id of the user who referred userID, or "".
func (d *Directory) ReferrerOf(ctx context.Context, userID string) (string, error) {
	var doc userDoc
	opts := options.FindOne().SetProjection(bson.D{{Key: "referred_by", Value: 1}})
	err := d.users.FindOne(ctx, bson.D{{Key: "_id", Value: userID}}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to find user %s: %w", userID, err)
	}
	return doc.ReferredBy, nil
}

// Decimal settings are stored as strings so no precision is lost in BSON
// doubles.
type rewardSettingsDoc struct {
	CashbackEnabled     *bool  `bson:"cashback_enabled,omitempty"`
	CashbackRate        string `bson:"cashback_rate,omitempty"`
	ReferralEnabled     *bool  `bson:"referral_enabled,omitempty"`
	ReferralRate        string `bson:"referral_rate,omitempty"`
	ReferralDailyBudget string `bson:"referral_daily_budget,omitempty"`
}

// RewardSettings reads the "rewards" settings document.
func (d *Directory) RewardSettings(ctx context.Context) (models.RewardSettings, error) {
	var doc rewardSettingsDoc
	err := d.settings.FindOne(ctx, bson.D{{Key: "_id", Value: rewardsSettingsID}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return d.defaults, nil
	}
	if err != nil {
		return models.RewardSettings{}, fmt.Errorf("failed to load reward settings: %w", err)
	}

	s := d.defaults
	if doc.CashbackEnabled != nil {
		s.CashbackEnabled = *doc.CashbackEnabled
	}
	if doc.ReferralEnabled != nil {
		s.ReferralEnabled = *doc.ReferralEnabled
	}
	for _, f := range []struct {
		raw string
		dst *decimal.Decimal
		key string
	}{
		{doc.CashbackRate, &s.CashbackRate, "cashback_rate"},
		{doc.ReferralRate, &s.ReferralRate, "referral_rate"},
		{doc.ReferralDailyBudget, &s.ReferralDailyBudget, "referral_daily_budget"},
	} {
		if f.raw == "" {
			continue
		}
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return models.RewardSettings{}, fmt.Errorf("invalid %s %q: %w", f.key, f.raw, err)
		}
		*f.dst = v
	}
	return s, nil
}
