package model

import (
	"fmt"
	"time"
)

// SitType distinguishes the three kinds of journal entry.
// The numeric values are stable — they are stored in the database.
type SitType int

const (
	TypeTimedSit SitType = iota // duration required
	TypeDiary                   // title required
	TypeArticle                 // title required
)

// Valid reports whether t is a known entry type.
func (t SitType) Valid() bool {
	return t == TypeTimedSit || t == TypeDiary || t == TypeArticle
}

// Sit is a single journal entry: a timed meditation log, a diary entry, or
// an article.
//
// CreatedAt doubles as the entry's "occurred on" date. Entries normally carry
// the timestamp of record, but a custom date can be supplied at creation so
// a session logged the morning after lands on the right calendar day.
//
// Private is independent of the owner's account-level privacy tier: a single
// entry can be private on an otherwise public journal. The bulk flag updates
// on tier changes keep the two consistent (see UserRepository.SetPrivacySetting).
type Sit struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Type      SitType   `json:"type"`
	Duration  int       `json:"duration,omitempty"` // minutes, set when Type == TypeTimedSit
	Title     string    `json:"title,omitempty"`
	Body      string    `json:"body"`
	Private   bool      `json:"private"`
	Views     int64     `json:"views"` // best-effort counter, approximate under concurrent reads
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsSit reports whether the entry is a timed meditation log.
func (s *Sit) IsSit() bool {
	return s.Type == TypeTimedSit
}

// Stub reports whether the entry has no narrative body — a quick duration
// log with nothing written. Stubs are valid entries; they just get skipped
// by next/previous navigation.
func (s *Sit) Stub() bool {
	return s.Body == ""
}

// FullTitle renders the heading shown on an entry's detail page.
func (s *Sit) FullTitle() string {
	switch s.Type {
	case TypeTimedSit:
		return fmt.Sprintf("%d minute meditation journal", s.Duration)
	case TypeArticle:
		return fmt.Sprintf("Article: %s", s.Title)
	default:
		return s.Title
	}
}

// MonthActivity is one row of the sparse month index: a calendar month with
// at least one visible entry and the number of entries in it. Months with no
// activity never appear.
type MonthActivity struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
	Count int        `json:"count"`
}
