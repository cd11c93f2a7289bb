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

type SessionRepository struct {
	sessions *mongo.Collection
	offDays  *mongo.Collection
	users    *UserRepository
}

func NewSessionRepository(db *mongo.Database, users *UserRepository) *SessionRepository {
	return &SessionRepository{
		sessions: db.Collection("clock_sessions"),
		offDays:  db.Collection("off_days"),
		users:    users,
	}
}

func (r *SessionRepository) Init(ctx context.Context) error {
	_, err := r.sessions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "start_at", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			// At most one open session per user; the insert in Open
			// fails with a duplicate key error for the second one.
			Keys: bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"end_at": bson.M{"$type": "null"}}),
		},
	})
	if err != nil {
		return fmt.Errorf("create session indexes: %w", err)
	}

	_, err = r.offDays.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "date", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create off day index: %w", err)
	}
	return nil
}

func (r *SessionRepository) Open(ctx context.Context, userID int64, at time.Time) (*domain.ClockSession, error) {
	start := at.UTC()
	zero, err := toDecimal128(decimal.Zero)
	if err != nil {
		return nil, err
	}
	_, err = r.sessions.InsertOne(ctx, sessionDoc{
		UserID:  userID,
		StartAt: start,
		Pay:     zero,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrAlreadyClockedIn
		}
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return &domain.ClockSession{ID: start.UnixNano(), UserID: userID, StartAt: start}, nil
}

// Close claims the open session with a single conditional update, records
// the duration and pay on the session document, then credits the user with a
// server-side $inc. Only one concurrent /clockout can match the end_at
// filter, and the pay survives on the session even if the credit fails.
func (r *SessionRepository) Close(ctx context.Context, userID int64, at time.Time, rate decimal.Decimal) (*domain.ClockSession, error) {
	end := at.UTC()

	var doc sessionDoc
	err := r.sessions.FindOneAndUpdate(ctx,
		bson.M{"user_id": userID, "end_at": nil},
		bson.M{"$set": bson.M{"end_at": end}},
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotClockedIn
		}
		return nil, fmt.Errorf("close session: %w", err)
	}

	duration := end.Sub(doc.StartAt)
	pay := rate.Mul(decimal.NewFromFloat(duration.Hours())).Round(2)
	payDec, err := toDecimal128(pay)
	if err != nil {
		return nil, err
	}

	_, err = r.sessions.UpdateOne(ctx,
		bson.M{"user_id": userID, "start_at": doc.StartAt},
		bson.M{"$set": bson.M{"duration_ns": int64(duration), "pay": payDec}},
	)
	if err != nil {
		return nil, fmt.Errorf("record session duration: %w", err)
	}

	if err := r.users.accrue(ctx, userID, duration, pay); err != nil {
		return nil, fmt.Errorf("credit session pay: %w", err)
	}

	return &domain.ClockSession{
		ID:       doc.StartAt.UnixNano(),
		UserID:   userID,
		StartAt:  doc.StartAt,
		EndAt:    &end,
		Duration: duration,
		Pay:      pay,
	}, nil
}

func (r *SessionRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]domain.ClockSession, error) {
	opts := options.Find().SetSort(bson.D{{Key: "start_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := r.sessions.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer cur.Close(ctx)

	var sessions []domain.ClockSession
	for cur.Next(ctx) {
		var doc sessionDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode session: %w", err)
		}
		sess, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, cur.Err()
}

func (r *SessionRepository) MarkOffDay(ctx context.Context, userID int64, date string) error {
	_, err := r.offDays.InsertOne(ctx, offDayDoc{
		UserID:    userID,
		Date:      date,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDuplicateOffDay
		}
		return fmt.Errorf("insert off day: %w", err)
	}
	return nil
}

func (r *SessionRepository) ListOffDays(ctx context.Context, userID int64) ([]domain.OffDay, error) {
	cur, err := r.offDays.Find(ctx, bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "date", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list off days: %w", err)
	}
	defer cur.Close(ctx)

	var days []domain.OffDay
	for cur.Next(ctx) {
		var doc offDayDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode off day: %w", err)
		}
		days = append(days, domain.OffDay{UserID: doc.UserID, Date: doc.Date, CreatedAt: doc.CreatedAt})
	}
	return days, cur.Err()
}

var _ repository.SessionRepository = (*SessionRepository)(nil)
