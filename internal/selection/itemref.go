package selection

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Key tuple sizes: [langcode, entity type, id] with an optional revision id.
const (
	keyPartsMin = 3
	keyPartsMax = 4
)

// Key decoding errors.
var (
	ErrEmptyKey     = errors.New("item key cannot be empty")
	ErrMalformedKey = errors.New("malformed item key")
)

// ItemRef addresses one record translation, optionally pinned to a revision.
// It serializes as the ordered tuple [languageCode, entityTypeId, id, revisionId?].
type ItemRef struct {
	LanguageCode string
	EntityTypeID string
	ID           string
	RevisionID   *int64
}

// NewItemRef builds a reference without a revision.
func NewItemRef(langcode, entityType, id string) ItemRef {
	return ItemRef{LanguageCode: langcode, EntityTypeID: entityType, ID: id}
}

// WithRevision returns a copy of r pinned to revision rev.
func (r ItemRef) WithRevision(rev int64) ItemRef {
	r.RevisionID = &rev
	return r
}

// HasRevision reports whether the reference targets a specific revision.
func (r ItemRef) HasRevision() bool {
	return r.RevisionID != nil
}

// Equal compares two references field by field.
func (r ItemRef) Equal(o ItemRef) bool {
	if r.LanguageCode != o.LanguageCode || r.EntityTypeID != o.EntityTypeID || r.ID != o.ID {
		return false
	}
	if r.HasRevision() != o.HasRevision() {
		return false
	}
	return !r.HasRevision() || *r.RevisionID == *o.RevisionID
}

// String renders a short human form, e.g. "node/12@en" or "node/12@en#r40".
func (r ItemRef) String() string {
	s := fmt.Sprintf("%s/%s@%s", r.EntityTypeID, r.ID, r.LanguageCode)
	if r.HasRevision() {
		s += "#r" + strconv.FormatInt(*r.RevisionID, 10)
	}
	return s
}

// MarshalJSON encodes the reference as its ordered tuple.
func (r ItemRef) MarshalJSON() ([]byte, error) {
	parts := []any{r.LanguageCode, r.EntityTypeID, r.ID}
	if r.HasRevision() {
		parts = append(parts, *r.RevisionID)
	}
	return json.Marshal(parts)
}

// UnmarshalJSON decodes the ordered tuple form. Numeric ids are accepted and
// kept in their textual form; a null revision means "no revision".
func (r *ItemRef) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedKey, err)
	}
	if len(parts) < keyPartsMin || len(parts) > keyPartsMax {
		return fmt.Errorf("%w: expected %d or %d parts, got %d", ErrMalformedKey, keyPartsMin, keyPartsMax, len(parts))
	}

	var ref ItemRef
	if err := json.Unmarshal(parts[0], &ref.LanguageCode); err != nil {
		return fmt.Errorf("%w: language code: %w", ErrMalformedKey, err)
	}
	if err := json.Unmarshal(parts[1], &ref.EntityTypeID); err != nil {
		return fmt.Errorf("%w: entity type: %w", ErrMalformedKey, err)
	}
	id, err := scalarString(parts[2])
	if err != nil {
		return fmt.Errorf("%w: id: %w", ErrMalformedKey, err)
	}
	if id == "" || ref.EntityTypeID == "" {
		return fmt.Errorf("%w: entity type and id are required", ErrMalformedKey)
	}
	ref.ID = id

	if len(parts) == keyPartsMax && !bytes.Equal(bytes.TrimSpace(parts[3]), []byte("null")) {
		raw, revErr := scalarString(parts[3])
		if revErr != nil {
			return fmt.Errorf("%w: revision: %w", ErrMalformedKey, revErr)
		}
		rev, parseErr := strconv.ParseInt(raw, 10, 64)
		if parseErr != nil {
			return fmt.Errorf("%w: revision: %w", ErrMalformedKey, parseErr)
		}
		ref.RevisionID = &rev
	}

	*r = ref
	return nil
}

// scalarString accepts a JSON string or number and returns its text.
func scalarString(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var n json.Number
	if err := dec.Decode(&n); err != nil {
		return "", err
	}
	return n.String(), nil
}

// EncodeKey renders r as a form and URL safe key: the JSON tuple, base64 encoded.
func EncodeKey(r ItemRef) string {
	// Marshal of strings and an int64 cannot fail.
	data, _ := r.MarshalJSON()
	return base64.URLEncoding.EncodeToString(data)
}

// DecodeKey reverses EncodeKey. Keys produced with the standard base64
// alphabet are accepted too.
func DecodeKey(key string) (ItemRef, error) {
	if key == "" {
		return ItemRef{}, ErrEmptyKey
	}
	data, err := base64.URLEncoding.DecodeString(key)
	if err != nil {
		var stdErr error
		data, stdErr = base64.StdEncoding.DecodeString(key)
		if stdErr != nil {
			return ItemRef{}, fmt.Errorf("%w: %w", ErrMalformedKey, err)
		}
	}
	var ref ItemRef
	if err := ref.UnmarshalJSON(data); err != nil {
		return ItemRef{}, err
	}
	return ref, nil
}

// DecodeKeys decodes every key, returning the valid references in order and
// the keys that could not be decoded.
func DecodeKeys(keys []string) ([]ItemRef, []string) {
	refs := make([]ItemRef, 0, len(keys))
	var bad []string
	for _, k := range keys {
		ref, err := DecodeKey(k)
		if err != nil {
			bad = append(bad, k)
			continue
		}
		refs = append(refs, ref)
	}
	return refs, bad
}
