package points

import "time"

// Account is the single ledger row of a user. user_id is the primary key, so
// there is never more than one balance per user.
type Account struct {
	UserID    string    `gorm:"primaryKey;type:varchar(36)" json:"userId"`
	Points    int64     `gorm:"not null;default:0;check:chk_user_points_non_negative,points >= 0" json:"points"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Account) TableName() string { return "user_points" }
