package mongo

import (
	"context"
	"errors"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fastygo/tasktracker/domain"
	"github.com/fastygo/tasktracker/repository"
)

type taskRepository struct {
	coll *mongo.Collection
}

// NewTaskRepository returns a MongoDB-backed implementation of TaskRepository.
func NewTaskRepository(db *mongo.Database) repository.TaskRepository {
	return &taskRepository{coll: db.Collection(tasksCollection)}
}

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	if task == nil {
		return nil, domain.ErrInvalidPayload
	}
	stored := task.Clone()
	if stored.ID.IsZero() {
		stored.ID = domain.NewID()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now()
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = stored.CreatedAt
	}

	if _, err := r.coll.InsertOne(ctx, toTaskDocument(stored)); err != nil {
		return nil, domain.StoreFailure("task.create", err)
	}
	if stored.Comments == nil {
		stored.Comments = []domain.Comment{}
	}
	return stored, nil
}

func (r *taskRepository) GetByID(ctx context.Context, id domain.ID) (*domain.Task, error) {
	var doc taskDocument
	err := r.coll.FindOne(ctx, bson.M{"_id": id.ObjectID()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrTaskNotFound
	}
	if err != nil {
		return nil, domain.StoreFailure("task.get", err)
	}
	task := doc.toDomain()
	return &task, nil
}

func (r *taskRepository) UpdateFields(ctx context.Context, id domain.ID, patch repository.TaskPatch) (int64, error) {
	set := bson.M{"updatedAt": now()}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Status != nil {
		set["status"] = string(*patch.Status)
	}
	if patch.CompletedAt != nil {
		set["completedAt"] = patch.CompletedAt.UTC()
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id.ObjectID()}, bson.M{"$set": set})
	if err != nil {
		return 0, domain.StoreFailure("task.update", err)
	}
	return res.MatchedCount, nil
}

func (r *taskRepository) AssignIf(ctx context.Context, id domain.ID, expected *domain.ID, assignee domain.ID) (int64, error) {
	filter := bson.M{"_id": id.ObjectID(), "assignedTo": nil}
	if expected != nil {
		filter["assignedTo"] = expected.ObjectID()
	}
	update := bson.M{"$set": bson.M{"assignedTo": assignee.ObjectID(), "updatedAt": now()}}

	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return 0, domain.StoreFailure("task.assign", err)
	}
	return res.MatchedCount, nil
}

func (r *taskRepository) AppendComment(ctx context.Context, id domain.ID, comment domain.Comment) (int64, error) {
	update := bson.M{
		"$push": bson.M{"comments": toCommentDocument(comment)},
		"$set":  bson.M{"updatedAt": now()},
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id.ObjectID()}, update)
	if err != nil {
		return 0, domain.StoreFailure("task.comment", err)
	}
	return res.MatchedCount, nil
}

func (r *taskRepository) Delete(ctx context.Context, id domain.ID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id.ObjectID()})
	if err != nil {
		return domain.StoreFailure("task.delete", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func (r *taskRepository) FindMany(ctx context.Context, q repository.TaskQuery) ([]domain.Task, error) {
	field := string(q.Sort.Field)
	if !q.Sort.Field.Valid() {
		field = string(repository.SortByCreatedAt)
	}
	direction := 1
	if q.Sort.Desc {
		direction = -1
	}

	order := bson.D{{Key: field, Value: direction}}
	if field != string(repository.SortByCreatedAt) {
		order = append(order, bson.E{Key: "createdAt", Value: 1})
	}
	order = append(order, bson.E{Key: "_id", Value: 1})

	opts := options.Find().SetSort(order)
	if q.Page.Skip > 0 {
		opts.SetSkip(int64(q.Page.Skip))
	}
	if q.Page.Limit > 0 {
		opts.SetLimit(int64(q.Page.Limit))
	}

	cursor, err := r.coll.Find(ctx, taskFilter(q.Filter), opts)
	if err != nil {
		return nil, domain.StoreFailure("task.find", err)
	}
	defer cursor.Close(ctx)

	var docs []taskDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, domain.StoreFailure("task.find", err)
	}

	tasks := make([]domain.Task, 0, len(docs))
	for _, doc := range docs {
		tasks = append(tasks, doc.toDomain())
	}
	return tasks, nil
}

func (r *taskRepository) AggregateMonthlyCompleted(ctx context.Context, userID domain.ID, since time.Time) ([]domain.MonthlyCompleted, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"assignedTo":  userID.ObjectID(),
			"status":      string(domain.StatusCompleted),
			"completedAt": bson.M{"$gte": since.UTC()},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{
				"year":  bson.M{"$year": "$completedAt"},
				"month": bson.M{"$month": "$completedAt"},
			},
			"count": bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id.year", Value: 1}, {Key: "_id.month", Value: 1}}}},
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, domain.StoreFailure("task.aggregate", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ID struct {
			Year  int `bson:"year"`
			Month int `bson:"month"`
		} `bson:"_id"`
		Count int64 `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, domain.StoreFailure("task.aggregate", err)
	}

	buckets := make([]domain.MonthlyCompleted, 0, len(rows))
	for _, row := range rows {
		buckets = append(buckets, domain.MonthlyCompleted{Year: row.ID.Year, Month: row.ID.Month, Count: row.Count})
	}
	return buckets, nil
}

func taskFilter(f repository.TaskFilter) bson.M {
	filter := bson.M{}
	if f.AssignedTo != nil {
		filter["assignedTo"] = f.AssignedTo.ObjectID()
	}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}
	if f.CreatedAt != nil {
		filter["createdAt"] = bson.M{"$gte": f.CreatedAt.From, "$lt": f.CreatedAt.Until}
	}
	if f.UpdatedAt != nil {
		filter["updatedAt"] = bson.M{"$gte": f.UpdatedAt.From, "$lt": f.UpdatedAt.Until}
	}
	if f.TitleContains != "" {
		filter["title"] = primitive.Regex{Pattern: regexp.QuoteMeta(f.TitleContains), Options: "i"}
	}
	return filter
}
