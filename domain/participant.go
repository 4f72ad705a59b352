// Package domain contains core concepts of the conversation sync engine.
// This file defines Participant snapshots.
package domain

// Participant is a denormalized identity snapshot taken at merge time.
// It is not a live reference: presence is tracked separately, keyed by UserID.
type Participant struct {
	ID     UserID
	Name   string
	Avatar string
}
