package store

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"nextlogin/internal/models"
)

// MongoStore implements UserStore on top of a MongoDB collection.
type MongoStore struct {
	col *mongo.Collection
}

var _ UserStore = (*MongoStore)(nil)

func NewMongoStore(col *mongo.Collection) *MongoStore {
	return &MongoStore{col: col}
}

// NormalizeEmail lowercases and trims an email address. All lookups
// and writes go through this so uniqueness is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *MongoStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.col.FindOne(ctx, bson.M{"email": NormalizeEmail(email)}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *MongoStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var user models.User
	err = s.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *MongoStore) Create(ctx context.Context, user *models.User) error {
	now := time.Now()
	user.ID = primitive.NewObjectID()
	user.Email = NormalizeEmail(user.Email)
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := s.col.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

func (s *MongoStore) SetVerificationToken(ctx context.Context, id, token string, expires time.Time) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	return s.updateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$set": bson.M{
			"email_verification_token":   token,
			"email_verification_expires": expires,
			"updated_at":                 time.Now(),
		},
	})
}

func (s *MongoStore) ConsumeVerificationToken(ctx context.Context, token string) (*models.User, error) {
	filter := bson.M{
		"email_verification_token":   token,
		"email_verification_expires": bson.M{"$gt": time.Now()},
	}
	update := bson.M{
		"$set": bson.M{
			"email_verified": true,
			"updated_at":     time.Now(),
		},
		"$unset": bson.M{
			"email_verification_token":   "",
			"email_verification_expires": "",
		},
	}
	return s.findOneAndUpdate(ctx, filter, update)
}

func (s *MongoStore) SetResetToken(ctx context.Context, email, token string, expires time.Time) error {
	return s.updateOne(ctx, bson.M{"email": NormalizeEmail(email)}, bson.M{
		"$set": bson.M{
			"password_reset_token":   token,
			"password_reset_expires": expires,
			"updated_at":             time.Now(),
		},
	})
}

func (s *MongoStore) ConsumeResetToken(ctx context.Context, token, passwordHash string) (*models.User, error) {
	filter := bson.M{
		"password_reset_token":   token,
		"password_reset_expires": bson.M{"$gt": time.Now()},
	}
	update := bson.M{
		"$set": bson.M{
			"password":   passwordHash,
			"updated_at": time.Now(),
		},
		"$unset": bson.M{
			"password_reset_token":   "",
			"password_reset_expires": "",
		},
	}
	return s.findOneAndUpdate(ctx, filter, update)
}

func (s *MongoStore) SetTwoFactor(ctx context.Context, id, secret string, backupCodes []string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	return s.updateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$set": bson.M{
			"two_factor_enabled":      true,
			"two_factor_secret":       secret,
			"two_factor_backup_codes": backupCodes,
			"updated_at":              time.Now(),
		},
	})
}

func (s *MongoStore) ClearTwoFactor(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	return s.updateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$set": bson.M{
			"two_factor_enabled": false,
			"updated_at":         time.Now(),
		},
		"$unset": bson.M{
			"two_factor_secret":       "",
			"two_factor_backup_codes": "",
		},
	})
}

func (s *MongoStore) ConsumeBackupCode(ctx context.Context, id, code string) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, ErrNotFound
	}
	// The filter requires the code to be present, so the $pull either
	// removes exactly that code or matches nothing. ModifiedCount
	// tells the two apart.
	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": oid, "two_factor_backup_codes": code},
		bson.M{
			"$pull": bson.M{"two_factor_backup_codes": code},
			"$set":  bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (s *MongoStore) TouchLastLogin(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	now := time.Now()
	return s.updateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$set": bson.M{
			"last_login": now,
			"updated_at": now,
		},
	})
}

func (s *MongoStore) updateOne(ctx context.Context, filter, update bson.M) error {
	res, err := s.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) findOneAndUpdate(ctx context.Context, filter, update bson.M) (*models.User, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var user models.User
	err := s.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}
