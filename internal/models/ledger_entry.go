package models

import "time"

// LedgerEntry is one proxy owned by one chat user.
type LedgerEntry struct {
	ID         uint      `json:"-" gorm:"primaryKey"`
	UserID     string    `json:"user_id" gorm:"index;uniqueIndex:idx_ledger_user_domain;not null"`
	Position   int       `json:"position"`
	ProxyID    int       `json:"proxy_id"`
	Domain     string    `json:"domain" gorm:"uniqueIndex:idx_ledger_user_domain;not null"`
	TargetIP   string    `json:"target_ip"`
	TargetPort int       `json:"target_port"`
	CreatedAt  time.Time `json:"created_at"`
}
