package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"clockledger/internal/domain"
	"clockledger/internal/repository"
)

// Store bundles the mongo-backed ledger repositories over one database.
type Store struct {
	client   *mongo.Client
	db       *mongo.Database
	users    *UserRepository
	sessions *SessionRepository
	claims   *ClaimRepository
}

func NewStore(client *mongo.Client, dbName string) *Store {
	db := client.Database(dbName)
	users := NewUserRepository(db)
	return &Store{
		client:   client,
		db:       db,
		users:    users,
		sessions: NewSessionRepository(db, users),
		claims:   NewClaimRepository(db, users),
	}
}

func (s *Store) Init(ctx context.Context) error {
	if err := s.users.Init(ctx); err != nil {
		return err
	}
	if err := s.sessions.Init(ctx); err != nil {
		return err
	}
	return s.claims.Init(ctx)
}

func (s *Store) Users() repository.UserRepository       { return s.users }
func (s *Store) Sessions() repository.SessionRepository { return s.sessions }
func (s *Store) Claims() repository.ClaimRepository     { return s.claims }

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) Snapshot(ctx context.Context) (*domain.Snapshot, error) {
	snap := &domain.Snapshot{TakenAt: time.Now().UTC()}

	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	snap.Users = users

	cur, err := s.sessions.sessions.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "user_id", Value: 1}, {Key: "start_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("snapshot sessions: %w", err)
	}
	for cur.Next(ctx) {
		var doc sessionDoc
		if err := cur.Decode(&doc); err != nil {
			cur.Close(ctx)
			return nil, fmt.Errorf("decode session: %w", err)
		}
		sess, err := doc.toDomain()
		if err != nil {
			cur.Close(ctx)
			return nil, err
		}
		snap.Sessions = append(snap.Sessions, sess)
	}
	if err := cur.Err(); err != nil {
		cur.Close(ctx)
		return nil, err
	}
	cur.Close(ctx)

	cur, err = s.sessions.offDays.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "user_id", Value: 1}, {Key: "date", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("snapshot off days: %w", err)
	}
	for cur.Next(ctx) {
		var doc offDayDoc
		if err := cur.Decode(&doc); err != nil {
			cur.Close(ctx)
			return nil, fmt.Errorf("decode off day: %w", err)
		}
		snap.OffDays = append(snap.OffDays, domain.OffDay{UserID: doc.UserID, Date: doc.Date, CreatedAt: doc.CreatedAt})
	}
	if err := cur.Err(); err != nil {
		cur.Close(ctx)
		return nil, err
	}
	cur.Close(ctx)

	cur, err = s.claims.topups.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("snapshot topups: %w", err)
	}
	for cur.Next(ctx) {
		var doc topupDoc
		if err := cur.Decode(&doc); err != nil {
			cur.Close(ctx)
			return nil, fmt.Errorf("decode topup: %w", err)
		}
		topup, err := doc.toDomain()
		if err != nil {
			cur.Close(ctx)
			return nil, err
		}
		snap.Topups = append(snap.Topups, topup)
	}
	if err := cur.Err(); err != nil {
		cur.Close(ctx)
		return nil, err
	}
	cur.Close(ctx)

	cur, err = s.claims.claims.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("snapshot claims: %w", err)
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var doc claimDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode claim: %w", err)
		}
		claim, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		snap.Claims = append(snap.Claims, claim)
	}
	return snap, cur.Err()
}

// Import replays a snapshot as per-document upserts keyed by natural ids, so
// repeating the same import leaves the database unchanged.
func (s *Store) Import(ctx context.Context, snap *domain.Snapshot) error {
	upsert := options.Replace().SetUpsert(true)

	for _, user := range snap.Users {
		salary, err := toDecimal128(user.MonthlySalary)
		if err != nil {
			return err
		}
		balance, err := toDecimal128(user.Balance)
		if err != nil {
			return err
		}
		_, err = s.users.coll.ReplaceOne(ctx, bson.M{"_id": user.ID}, userDoc{
			ID:            user.ID,
			Username:      user.Username,
			FirstName:     user.FirstName,
			Role:          string(user.Role),
			MonthlySalary: salary,
			Balance:       balance,
			WorkedNs:      int64(user.WorkedTotal),
			CreatedAt:     user.CreatedAt.UTC(),
			UpdatedAt:     user.UpdatedAt.UTC(),
		}, upsert)
		if err != nil {
			return fmt.Errorf("import user %d: %w", user.ID, err)
		}
	}

	for _, sess := range snap.Sessions {
		pay, err := toDecimal128(sess.Pay)
		if err != nil {
			return err
		}
		doc := sessionDoc{
			UserID:     sess.UserID,
			StartAt:    sess.StartAt.UTC(),
			DurationNs: int64(sess.Duration),
			Pay:        pay,
		}
		if sess.EndAt != nil {
			end := sess.EndAt.UTC()
			doc.EndAt = &end
		}
		_, err = s.sessions.sessions.ReplaceOne(ctx,
			bson.M{"user_id": sess.UserID, "start_at": sess.StartAt.UTC()}, doc, upsert)
		if err != nil {
			return fmt.Errorf("import session for user %d: %w", sess.UserID, err)
		}
	}

	for _, day := range snap.OffDays {
		_, err := s.sessions.offDays.ReplaceOne(ctx,
			bson.M{"user_id": day.UserID, "date": day.Date},
			offDayDoc{UserID: day.UserID, Date: day.Date, CreatedAt: day.CreatedAt.UTC()},
			upsert)
		if err != nil {
			return fmt.Errorf("import off day for user %d: %w", day.UserID, err)
		}
	}

	for _, topup := range snap.Topups {
		amount, err := toDecimal128(topup.Amount)
		if err != nil {
			return err
		}
		_, err = s.claims.topups.ReplaceOne(ctx, bson.M{"_id": topup.ID}, topupDoc{
			ID:        topup.ID,
			UserID:    topup.UserID,
			Amount:    amount,
			AdminID:   topup.AdminID,
			CreatedAt: topup.CreatedAt.UTC(),
		}, upsert)
		if err != nil {
			return fmt.Errorf("import topup %s: %w", topup.ID, err)
		}
	}

	for _, claim := range snap.Claims {
		amount, err := toDecimal128(claim.Amount)
		if err != nil {
			return err
		}
		_, err = s.claims.claims.ReplaceOne(ctx, bson.M{"_id": claim.ID}, claimDoc{
			ID:          claim.ID,
			UserID:      claim.UserID,
			Amount:      amount,
			Kind:        claim.Kind,
			Description: claim.Description,
			EvidenceRef: claim.EvidenceRef,
			Status:      string(claim.Status),
			CreatedAt:   claim.CreatedAt.UTC(),
		}, upsert)
		if err != nil {
			return fmt.Errorf("import claim %s: %w", claim.ID, err)
		}
	}

	return nil
}

var _ repository.Store = (*Store)(nil)
