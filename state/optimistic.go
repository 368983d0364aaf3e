package state

import (
	"encoding/json"
	"errors"
	"fmt"
)

// maxCASRetries bounds the CAS loop in UpsertElement. Hitting it means a
// pathological write storm; the caller gets ErrRevisionMismatch and decides.
const maxCASRetries = 10

// InitIfAbsent writes defaultValue under key only if the key does not yet
// exist. Returns true if this call created the document. Two concurrent
// initializers cannot clobber each other: the loser simply observes the
// winner's document.
func InitIfAbsent(s DocStore, key string, defaultValue []byte) (bool, error) {
	_, err := s.Create(key, defaultValue)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrAlreadyExists) {
		return false, nil
	}
	return false, err
}

// UpsertElement updates the element of the collection field whose keyField
// matches element's, or appends element when no match exists. The document
// at docKey is a JSON object; field names an array of objects inside it.
//
// The update runs in a compare-and-put loop, so two concurrent writers
// contributing results for different keys never lose each other's update,
// and two writers for the same key never produce duplicate entries.
func UpsertElement(s DocStore, docKey, field, keyField string, element map[string]interface{}) error {
	keyValue, ok := element[keyField]
	if !ok {
		return fmt.Errorf("element missing key field %q", keyField)
	}

	for attempt := 0; attempt < maxCASRetries; attempt++ {
		kv, err := s.Get(docKey)
		if errors.Is(err, ErrNotFound) {
			// First writer creates the document with a single-element list.
			doc := map[string]interface{}{field: []interface{}{element}}
			data, merr := json.Marshal(doc)
			if merr != nil {
				return merr
			}
			if _, cerr := s.Create(docKey, data); cerr == nil {
				return nil
			} else if errors.Is(cerr, ErrAlreadyExists) {
				continue // lost the create race, retry as an update
			} else {
				return cerr
			}
		}
		if err != nil {
			return err
		}

		var doc map[string]interface{}
		if err := json.Unmarshal(kv.Value, &doc); err != nil {
			return fmt.Errorf("decode document %s: %w", docKey, err)
		}

		list, _ := doc[field].([]interface{})
		replaced := false
		for i, raw := range list {
			existing, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			if existing[keyField] == keyValue {
				list[i] = element
				replaced = true
				break
			}
		}
		if !replaced {
			list = append(list, element)
		}
		doc[field] = list

		data, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		if _, err := s.CompareAndPut(docKey, data, kv.Revision); err == nil {
			return nil
		} else if !errors.Is(err, ErrRevisionMismatch) {
			return err
		}
		// Revision moved under us; reload and retry.
	}
	return ErrRevisionMismatch
}
