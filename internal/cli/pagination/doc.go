// Package pagination provides the limit/offset, page and sort flags shared by
// the listing commands, together with the metadata printed under a page.
package pagination
