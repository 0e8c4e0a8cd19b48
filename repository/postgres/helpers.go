package postgres

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fastygo/tasktracker/domain"
)

const uniqueViolation = "23505"

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// commentRow is the JSONB element stored in tasks.comments.
type commentRow struct {
	Text      string    `json:"text"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

func marshalComments(comments []domain.Comment) ([]byte, error) {
	rows := make([]commentRow, 0, len(comments))
	for _, c := range comments {
		rows = append(rows, commentRow{Text: c.Text, Author: c.Author.ID.String(), CreatedAt: c.CreatedAt.UTC()})
	}
	return json.Marshal(rows)
}

func unmarshalComments(data []byte) ([]domain.Comment, error) {
	comments := []domain.Comment{}
	if len(data) == 0 {
		return comments, nil
	}
	var rows []commentRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	for _, row := range rows {
		comments = append(comments, domain.Comment{
			Text:      row.Text,
			Author:    domain.Reference(domain.ID(row.Author)),
			CreatedAt: row.CreatedAt,
		})
	}
	return comments, nil
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

func nullID(id *domain.ID) interface{} {
	if id == nil || id.IsZero() {
		return nil
	}
	return id.String()
}

func toIDs(raw []string) []domain.ID {
	ids := make([]domain.ID, 0, len(raw))
	for _, r := range raw {
		ids = append(ids, domain.ID(r))
	}
	return ids
}

func toStrings(ids []domain.ID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

// escapeLike quotes the LIKE metacharacters so the search term matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
