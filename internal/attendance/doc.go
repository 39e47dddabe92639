// Package attendance persists scan events in SQLite and keeps a cached view
// of today's records.
//
// Dates and times are stored as strings rendered with the user's configured
// formats, so the report reconciler can match them against header cells
// without conversion. Uniqueness per (date, name) is enforced by the schema;
// Record treats a conflicting insert as a duplicate rather than an error.
package attendance
