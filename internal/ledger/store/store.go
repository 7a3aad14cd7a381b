// Package store persists repeat-offender records.
//
// Error contract: Find and Reset return sentinel.ErrNotFound for a subject
// with no record. Increment and SetStatus create the record on first use.
package store
