// Package batch plans chunked, resumable runs over a selection.
//
// A Cursor is the whole persisted progress of one run. NextWindow derives the
// window of the next chunk from a cursor without touching any other state, so
// a run restored from storage resumes exactly where it stopped. Report turns a
// cursor into the fraction and message shown to the operator.
package batch
