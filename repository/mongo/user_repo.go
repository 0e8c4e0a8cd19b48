package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fastygo/tasktracker/domain"
	"github.com/fastygo/tasktracker/repository"
)

type userRepository struct {
	coll *mongo.Collection
}

// NewUserRepository returns a MongoDB-backed implementation of UserRepository.
func NewUserRepository(db *mongo.Database) repository.UserRepository {
	return &userRepository{coll: db.Collection(usersCollection)}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	if user == nil {
		return nil, domain.ErrInvalidPayload
	}
	stored := *user
	stored.Email = domain.NormalizeEmail(user.Email)
	if stored.ID.IsZero() {
		stored.ID = domain.NewID()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now()
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = stored.CreatedAt
	}
	if stored.AssignedTasks == nil {
		stored.AssignedTasks = []domain.ID{}
	}

	if _, err := r.coll.InsertOne(ctx, toUserDocument(&stored)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrEmailTaken
		}
		return nil, domain.StoreFailure("user.create", err)
	}
	return &stored, nil
}

func (r *userRepository) GetByID(ctx context.Context, id domain.ID) (*domain.User, error) {
	return r.findOne(ctx, "user.get", bson.M{"_id": id.ObjectID()})
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, "user.get_by_email", bson.M{"email": domain.NormalizeEmail(email)})
}

func (r *userRepository) GetMany(ctx context.Context, ids []domain.ID) ([]domain.User, error) {
	users := []domain.User{}
	if len(ids) == 0 {
		return users, nil
	}
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oids = append(oids, id.ObjectID())
	}

	cursor, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, domain.StoreFailure("user.get_many", err)
	}
	defer cursor.Close(ctx)

	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, domain.StoreFailure("user.get_many", err)
	}
	for _, doc := range docs {
		users = append(users, doc.toDomain())
	}
	return users, nil
}

func (r *userRepository) UpdateFields(ctx context.Context, id domain.ID, patch repository.UserPatch) (int64, error) {
	set := bson.M{"updatedAt": now()}
	if patch.FirstName != nil {
		set["firstName"] = *patch.FirstName
	}
	if patch.LastName != nil {
		set["lastName"] = *patch.LastName
	}
	if patch.Image != nil {
		set["image"] = *patch.Image
	}
	if patch.Role != nil {
		set["role"] = *patch.Role
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id.ObjectID()}, bson.M{"$set": set})
	if err != nil {
		return 0, domain.StoreFailure("user.update", err)
	}
	return res.MatchedCount, nil
}

func (r *userRepository) AddAssignedTask(ctx context.Context, userID, taskID domain.ID) error {
	update := bson.M{
		"$addToSet": bson.M{"assignedTasks": taskID.ObjectID()},
		"$set":      bson.M{"updatedAt": now()},
	}
	return r.updateTasks(ctx, "user.add_task", userID, update)
}

func (r *userRepository) RemoveAssignedTask(ctx context.Context, userID, taskID domain.ID) error {
	update := bson.M{
		"$pull": bson.M{"assignedTasks": taskID.ObjectID()},
		"$set":  bson.M{"updatedAt": now()},
	}
	return r.updateTasks(ctx, "user.remove_task", userID, update)
}

func (r *userRepository) FindByAssignedTask(ctx context.Context, taskID domain.ID) (*domain.User, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	user, err := r.findOne(ctx, "user.find_by_task", bson.M{"assignedTasks": taskID.ObjectID()}, opts)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, nil
	}
	return user, err
}

func (r *userRepository) updateTasks(ctx context.Context, op string, userID domain.ID, update bson.M) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": userID.ObjectID()}, update)
	if err != nil {
		return domain.StoreFailure(op, err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *userRepository) findOne(ctx context.Context, op string, filter bson.M, opts ...*options.FindOneOptions) (*domain.User, error) {
	var doc userDocument
	err := r.coll.FindOne(ctx, filter, opts...).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, domain.StoreFailure(op, err)
	}
	user := doc.toDomain()
	return &user, nil
}
