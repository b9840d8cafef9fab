package domain

import "time"

// Membership is the subscription tier of a user
type Membership string

const (
	MembershipFree    Membership = "FREE"
	MembershipPalmera Membership = "PALMERA"
	MembershipCoral   Membership = "CORAL"
	MembershipPerla   Membership = "PERLA"
)

// DailyQuota returns the number of games the tier may play per day
func (m Membership) DailyQuota() int {
	switch m {
	case MembershipPalmera:
		return 8
	case MembershipCoral:
		return 15
	case MembershipPerla:
		return 25
	default:
		return 3
	}
}

// Memberships lists every known tier
func Memberships() []Membership {
	return []Membership{MembershipFree, MembershipPalmera, MembershipCoral, MembershipPerla}
}

// User Model
type User struct {
	ID             uint       `gorm:"primaryKey"`                                     // Primary key
	Username       string     `gorm:"unique;not null"`                                // Unique username
	Password       string     `gorm:"not null" json:"-"`                              // Hashed password
	Role           string     `gorm:"default:user"`                                   // Role: user or admin
	Membership     Membership `gorm:"size:16;not null;default:FREE"`                  // Membership tier
	DailyGamesLeft int        `gorm:"not null"`                                       // Plays left today
	ExtraGames     int        `gorm:"not null;default:0"`                             // Purchased plays, never reset
	LastDailyReset *time.Time `gorm:"column:last_daily_reset"`                        // Last quota reset
	IsFrozen       bool       `gorm:"not null;default:false"`                         // Locked pending manual review
	Wallet         Wallet     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;"` // One-to-one relationship with Wallet
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
