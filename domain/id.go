package domain

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ID is an opaque entity identifier: 24 lowercase hex characters, the shape of
// a MongoDB ObjectID regardless of which engine stores the record.
type ID string

// NewID mints a fresh identifier.
func NewID() ID {
	return ID(primitive.NewObjectID().Hex())
}

// ParseID validates raw and returns it in canonical form. Every identifier
// coming from outside the process goes through here before a store sees it.
func ParseID(raw string) (ID, error) {
	oid, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return "", WrapError(ErrCodeInvalidIdentifier, fmt.Sprintf("id %q not valid", raw), err)
	}
	return ID(oid.Hex()), nil
}

// ParseIDs parses each raw identifier, failing on the first malformed one.
func ParseIDs(raw ...string) ([]ID, error) {
	ids := make([]ID, 0, len(raw))
	for _, r := range raw {
		id, err := ParseID(r)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (id ID) String() string {
	return string(id)
}

func (id ID) IsZero() bool {
	return id == ""
}

// ObjectID converts the identifier for the document engine. Identifiers that
// never went through ParseID or NewID convert to the nil ObjectID.
func (id ID) ObjectID() primitive.ObjectID {
	oid, err := primitive.ObjectIDFromHex(string(id))
	if err != nil {
		return primitive.NilObjectID
	}
	return oid
}

// IDFromObjectID is the inverse of ID.ObjectID.
func IDFromObjectID(oid primitive.ObjectID) ID {
	return ID(oid.Hex())
}
