package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"clockledger/internal/domain"
	"clockledger/internal/repository"
)

type UserRepository struct {
	coll *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{coll: db.Collection("users")}
}

func (r *UserRepository) Init(ctx context.Context) error {
	// _id is the Telegram user id, already unique. Nothing else to index.
	return nil
}

// Ensure upserts the user: profile fields are refreshed on every interaction,
// ledger fields are only written when the document is first created.
func (r *UserRepository) Ensure(ctx context.Context, user *domain.User) error {
	salary, err := toDecimal128(user.MonthlySalary)
	if err != nil {
		return err
	}
	balance, err := toDecimal128(user.Balance)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"username":   user.Username,
			"first_name": user.FirstName,
			"role":       string(user.Role),
			"updated_at": now,
		},
		"$setOnInsert": bson.M{
			"monthly_salary": salary,
			"balance":        balance,
			"worked_ns":      int64(user.WorkedTotal),
			"created_at":     now,
		},
	}
	_, err = r.coll.UpdateOne(ctx, bson.M{"_id": user.ID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("ensure user %d: %w", user.ID, err)
	}
	return nil
}

func (r *UserRepository) Get(ctx context.Context, id int64) (*domain.User, error) {
	var doc userDoc
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user %d: %w", id, err)
	}
	return doc.toDomain()
}

func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	cur, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer cur.Close(ctx)

	var users []domain.User
	for cur.Next(ctx) {
		var doc userDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode user: %w", err)
		}
		user, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, cur.Err()
}

// AddBalance uses a server-side $inc so concurrent topups and claims against
// the same account cannot lose updates.
func (r *UserRepository) AddBalance(ctx context.Context, id int64, delta decimal.Decimal) error {
	amount, err := toDecimal128(delta)
	if err != nil {
		return err
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$inc": bson.M{"balance": amount},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("add balance for user %d: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) SetMonthlySalary(ctx context.Context, id int64, salary decimal.Decimal) error {
	amount, err := toDecimal128(salary)
	if err != nil {
		return err
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"monthly_salary": amount, "updated_at": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("set salary for user %d: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// accrue credits session pay and the worked duration in one $inc. Called by
// SessionRepository.Close.
func (r *UserRepository) accrue(ctx context.Context, id int64, worked time.Duration, pay decimal.Decimal) error {
	amount, err := toDecimal128(pay)
	if err != nil {
		return err
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$inc": bson.M{"balance": amount, "worked_ns": int64(worked)},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("accrue for user %d: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

var _ repository.UserRepository = (*UserRepository)(nil)
