package client

import "time"

// Client is a billing counterparty owned by exactly one user.
type Client struct {
	ID           string
	UserID       string
	Name         string
	BusinessName string
	Email        string
	Phone        string
	Address      string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
