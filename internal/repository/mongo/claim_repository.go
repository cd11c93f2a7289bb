package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"clockledger/internal/domain"
	"clockledger/internal/repository"
)

type ClaimRepository struct {
	claims *mongo.Collection
	topups *mongo.Collection
	users  *UserRepository
}

func NewClaimRepository(db *mongo.Database, users *UserRepository) *ClaimRepository {
	return &ClaimRepository{
		claims: db.Collection("claims"),
		topups: db.Collection("topups"),
		users:  users,
	}
}

func (r *ClaimRepository) Init(ctx context.Context) error {
	for _, coll := range []*mongo.Collection{r.claims, r.topups} {
		_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: 1}},
		})
		if err != nil {
			return fmt.Errorf("create %s index: %w", coll.Name(), err)
		}
	}
	return nil
}

// Create debits the balance first with a $inc that also proves the user
// exists, then appends the claim document. The claim id is fresh per call, so
// a failed append never double-charges on retry.
func (r *ClaimRepository) Create(ctx context.Context, claim *domain.Claim) error {
	if err := r.users.AddBalance(ctx, claim.UserID, claim.Amount.Neg()); err != nil {
		return err
	}

	amount, err := toDecimal128(claim.Amount)
	if err != nil {
		return err
	}
	_, err = r.claims.InsertOne(ctx, claimDoc{
		ID:          claim.ID,
		UserID:      claim.UserID,
		Amount:      amount,
		Kind:        claim.Kind,
		Description: claim.Description,
		EvidenceRef: claim.EvidenceRef,
		Status:      string(claim.Status),
		CreatedAt:   claim.CreatedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("insert claim: %w", err)
	}
	return nil
}

func (r *ClaimRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Claim, error) {
	cur, err := r.claims.Find(ctx, bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	defer cur.Close(ctx)

	var claims []domain.Claim
	for cur.Next(ctx) {
		var doc claimDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode claim: %w", err)
		}
		claim, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		claims = append(claims, claim)
	}
	return claims, cur.Err()
}

func (r *ClaimRepository) AddTopup(ctx context.Context, topup *domain.Topup) error {
	if err := r.users.AddBalance(ctx, topup.UserID, topup.Amount); err != nil {
		return err
	}

	amount, err := toDecimal128(topup.Amount)
	if err != nil {
		return err
	}
	_, err = r.topups.InsertOne(ctx, topupDoc{
		ID:        topup.ID,
		UserID:    topup.UserID,
		Amount:    amount,
		AdminID:   topup.AdminID,
		CreatedAt: topup.CreatedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("insert topup: %w", err)
	}
	return nil
}

func (r *ClaimRepository) ListTopups(ctx context.Context, userID int64) ([]domain.Topup, error) {
	cur, err := r.topups.Find(ctx, bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list topups: %w", err)
	}
	defer cur.Close(ctx)

	var topups []domain.Topup
	for cur.Next(ctx) {
		var doc topupDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode topup: %w", err)
		}
		topup, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		topups = append(topups, topup)
	}
	return topups, cur.Err()
}

var _ repository.ClaimRepository = (*ClaimRepository)(nil)
