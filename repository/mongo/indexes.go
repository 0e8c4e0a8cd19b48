package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes both collections rely on. It is safe to run on every boot.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	users := []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("email_unique")},
		{Keys: bson.D{{Key: "assignedTasks", Value: 1}}, Options: options.Index().SetName("assigned_tasks")},
	}
	if _, err := db.Collection(usersCollection).Indexes().CreateMany(ctx, users); err != nil {
		return fmt.Errorf("mongo: users indexes: %w", err)
	}

	tasks := []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}, Options: options.Index().SetName("created_at")},
		{Keys: bson.D{{Key: "assignedTo", Value: 1}, {Key: "status", Value: 1}, {Key: "completedAt", Value: 1}}, Options: options.Index().SetName("assignee_completion")},
	}
	if _, err := db.Collection(tasksCollection).Indexes().CreateMany(ctx, tasks); err != nil {
		return fmt.Errorf("mongo: tasks indexes: %w", err)
	}
	return nil
}
