// Package mongo stores tasks and users as MongoDB documents.
package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fastygo/tasktracker/domain"
)

const (
	tasksCollection = "tasks"
	usersCollection = "users"
)

type commentDocument struct {
	Text      string             `bson:"text"`
	Author    primitive.ObjectID `bson:"author"`
	CreatedAt time.Time          `bson:"createdAt"`
}

type taskDocument struct {
	ID          primitive.ObjectID  `bson:"_id"`
	Title       string              `bson:"title"`
	Description string              `bson:"description"`
	Type        string              `bson:"type"`
	Status      string              `bson:"status"`
	CreatedBy   primitive.ObjectID  `bson:"createdBy"`
	AssignedTo  *primitive.ObjectID `bson:"assignedTo"`
	Comments    []commentDocument   `bson:"comments"`
	Attachments []string            `bson:"attachments"`
	CompletedAt *time.Time          `bson:"completedAt"`
	CreatedAt   time.Time           `bson:"createdAt"`
	UpdatedAt   time.Time           `bson:"updatedAt"`
}

type userDocument struct {
	ID            primitive.ObjectID   `bson:"_id"`
	FirstName     string               `bson:"firstName"`
	LastName      string               `bson:"lastName"`
	Email         string               `bson:"email"`
	PasswordHash  string               `bson:"password"`
	Image         string               `bson:"image,omitempty"`
	Role          string               `bson:"role,omitempty"`
	AssignedTasks []primitive.ObjectID `bson:"assignedTasks"`
	CreatedAt     time.Time            `bson:"createdAt"`
	UpdatedAt     time.Time            `bson:"updatedAt"`
}

// now truncates to the millisecond precision BSON dates carry.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func objectIDPtr(id *domain.ID) *primitive.ObjectID {
	if id == nil || id.IsZero() {
		return nil
	}
	oid := id.ObjectID()
	return &oid
}

func toTaskDocument(t *domain.Task) taskDocument {
	doc := taskDocument{
		ID:          t.ID.ObjectID(),
		Title:       t.Title,
		Description: t.Description,
		Type:        string(t.Type),
		Status:      string(t.Status),
		CreatedBy:   t.CreatedBy.ID.ObjectID(),
		AssignedTo:  objectIDPtr(t.AssigneeID()),
		Comments:    make([]commentDocument, 0, len(t.Comments)),
		Attachments: t.Attachments,
		CompletedAt: t.CompletedAt,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if doc.Attachments == nil {
		doc.Attachments = []string{}
	}
	for _, c := range t.Comments {
		doc.Comments = append(doc.Comments, toCommentDocument(c))
	}
	return doc
}

func toCommentDocument(c domain.Comment) commentDocument {
	return commentDocument{Text: c.Text, Author: c.Author.ID.ObjectID(), CreatedAt: c.CreatedAt.UTC()}
}

func (d taskDocument) toDomain() domain.Task {
	task := domain.Task{
		ID:          domain.IDFromObjectID(d.ID),
		Title:       d.Title,
		Description: d.Description,
		Type:        domain.TaskType(d.Type),
		Status:      domain.TaskStatus(d.Status),
		CreatedBy:   domain.Reference(domain.IDFromObjectID(d.CreatedBy)),
		Comments:    make([]domain.Comment, 0, len(d.Comments)),
		Attachments: d.Attachments,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	if d.AssignedTo != nil {
		ref := domain.Reference(domain.IDFromObjectID(*d.AssignedTo))
		task.AssignedTo = &ref
	}
	if d.CompletedAt != nil {
		at := *d.CompletedAt
		task.CompletedAt = &at
	}
	for _, c := range d.Comments {
		task.Comments = append(task.Comments, domain.Comment{
			Text:      c.Text,
			Author:    domain.Reference(domain.IDFromObjectID(c.Author)),
			CreatedAt: c.CreatedAt,
		})
	}
	return task
}

func toUserDocument(u *domain.User) userDocument {
	doc := userDocument{
		ID:            u.ID.ObjectID(),
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Email:         u.Email,
		PasswordHash:  u.PasswordHash,
		Image:         u.Image,
		Role:          u.Role,
		AssignedTasks: make([]primitive.ObjectID, 0, len(u.AssignedTasks)),
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
	for _, id := range u.AssignedTasks {
		doc.AssignedTasks = append(doc.AssignedTasks, id.ObjectID())
	}
	return doc
}

func (d userDocument) toDomain() domain.User {
	user := domain.User{
		ID:            domain.IDFromObjectID(d.ID),
		FirstName:     d.FirstName,
		LastName:      d.LastName,
		Email:         d.Email,
		PasswordHash:  d.PasswordHash,
		Image:         d.Image,
		Role:          d.Role,
		AssignedTasks: make([]domain.ID, 0, len(d.AssignedTasks)),
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
	for _, oid := range d.AssignedTasks {
		user.AssignedTasks = append(user.AssignedTasks, domain.IDFromObjectID(oid))
	}
	return user
}
