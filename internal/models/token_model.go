package models

// TableName is the name of the table for provider access tokens
var TokensTableName = "tokens"

// TokenModel persists a single provider access token. There is at most one
// row, keyed by ID 1.
type TokenModel struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
	CreatedAt    int64  `json:"created_at"`
}

// TableName specifies the table name for the TokenModel model
func (TokenModel) TableName() string {
	return TokensTableName
}
