package offlinepush

import (
	"context"

	"github.com/flare-im/message-core/pkg/database/sql"
)

// deviceToken is the durable record of a user's registered push token.
// Registration itself happens out of band (the client's device-registration
// call); this package only reads the table.
type deviceToken struct {
	UserID string `gorm:"primaryKey"`
	Token  string `gorm:"primaryKey"`
}

func (deviceToken) TableName() string { return "device_tokens" }

// SQLTokenStore is a TokenSource backed by the device_tokens table.
type SQLTokenStore struct {
	db sql.SQL
}

// NewSQLTokenStore builds a SQLTokenStore.
func NewSQLTokenStore(db sql.SQL) *SQLTokenStore {
	return &SQLTokenStore{db: db}
}

// PushTokens returns every token registered for userID.
func (s *SQLTokenStore) PushTokens(ctx context.Context, userID string) ([]string, error) {
	var rows []deviceToken
	if err := s.db.Get(ctx).Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, err
	}
	tokens := make([]string, len(rows))
	for i, r := range rows {
		tokens[i] = r.Token
	}
	return tokens, nil
}
