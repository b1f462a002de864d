package hnapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/JakeFAU/hn-harvester/internal/hn"
)

type itemPayload struct {
	ID    *uint64 `json:"id"`
	Title *string `json:"title"`
}

// DecodeListing parses a body holding exactly one JSON array of unsigned
// integers. Order is preserved.
func DecodeListing(body []byte) ([]hn.ID, error) {
	raw, err := singleValue(body)
	if err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}
	if raw[0] != '[' {
		return nil, fmt.Errorf("decode listing: %w: expecting one JSON array", hn.ErrMalformed)
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, fmt.Errorf("decode listing: %w: %w", hn.ErrMalformed, err)
	}
	ids := make([]hn.ID, 0, len(elems))
	for i, elem := range elems {
		v, err := strconv.ParseUint(string(bytes.TrimSpace(elem)), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("decode listing: %w: element %d is not an unsigned integer: %s",
				hn.ErrMalformed, i, elem)
		}
		ids = append(ids, hn.ID(v))
	}
	return ids, nil
}

// DecodeItem parses an item body. The single top-level value is either the
// item object or an array holding exactly one item object. The object must
// carry an integer "id" and a string "title".
func DecodeItem(body []byte) (hn.FetchResult, error) {
	raw, err := singleValue(body)
	if err != nil {
		return hn.FetchResult{}, fmt.Errorf("decode item: %w", err)
	}
	if raw[0] == '[' {
		var elems []json.RawMessage
		if err := json.Unmarshal(raw, &elems); err != nil {
			return hn.FetchResult{}, fmt.Errorf("decode item: %w: %w", hn.ErrMalformed, err)
		}
		if len(elems) != 1 {
			return hn.FetchResult{}, fmt.Errorf("decode item: %w: expecting one object from item, got %d",
				hn.ErrMalformed, len(elems))
		}
		raw = bytes.TrimSpace(elems[0])
	}
	if len(raw) == 0 || raw[0] != '{' {
		return hn.FetchResult{}, fmt.Errorf("decode item: %w: expecting one object from item", hn.ErrMalformed)
	}

	var payload itemPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return hn.FetchResult{}, fmt.Errorf("decode item: %w: %w", hn.ErrMalformed, err)
	}
	if payload.ID == nil {
		return hn.FetchResult{}, fmt.Errorf("decode item: %w: missing \"id\"", hn.ErrMalformed)
	}
	if payload.Title == nil {
		return hn.FetchResult{}, fmt.Errorf("decode item %d: %w: missing \"title\"", *payload.ID, hn.ErrMalformed)
	}
	return hn.FetchResult{ID: hn.ID(*payload.ID), Title: *payload.Title}, nil
}

// singleValue returns the only top-level JSON value in body, trimmed.
func singleValue(body []byte) (json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %w", hn.ErrMalformed, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: more than one top-level JSON value", hn.ErrMalformed)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty document", hn.ErrMalformed)
	}
	return raw, nil
}
