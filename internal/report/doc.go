// Package report reconciles stored attendance into the SF2 workbook.
//
// The workbook carries a date header on row 11 (columns D through AB) and
// two roster sections (rows 14-43 and 46-75) with one learner name per row
// in column B. UpdatePresence writes 0 for present and x for absent;
// UpdateLateArrivals clears the marker of anyone who arrived after the
// cutoff and flags the cell with the late marker image, or with a border
// and comment when the image cannot be used.
//
// Every edit runs against a verified backup copy; on failure the original
// bytes are restored before the error is returned.
package report
