// Package models defines the shared data types that flow between the
// relational, vector, and graph adapters and the memory pipeline core.
package models

import "time"

// Reserved category names with special semantics.
const (
	CategoryCore      = "core_memories"
	CategoryShort     = "short_memory"
	CategoryForgotten = "forgotten_memories"
)

// Memory is the primary entity: one caller-submitted text record.
type Memory struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Date      time.Time `json:"date"`
	Category  string    `json:"category"`
	Topic     string    `json:"topic"`
	Content   string    `json:"content"`

	// Source documents which caller wrote the row (provenance only, never
	// consulted for routing). Defaults to "mcp".
	Source string `json:"source"`
}

// CategoryCount is one row of ListCategories() output.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// Stats is the aggregate relational store summary.
type Stats struct {
	Total      int            `json:"total"`
	ByCategory map[string]int `json:"by_category"`
	DBType     string         `json:"db_type"`
}

// Health is a generic backend health probe result.
type Health struct {
	OK     bool   `json:"ok"`
	Detail string `json:"detail"`
}
