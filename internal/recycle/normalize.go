package recycle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FieldRule lists candidate field paths, in priority order, used to derive an
// entry's display name and entity id. Paths are dot separated ("data.sampleId").
type FieldRule struct {
	Name []string
	ID   []string
}

// FieldMap holds the field rules per entity type. The Default rule is always
// tried first; a type's rule only adds fallback candidates after it.
type FieldMap struct {
	Default FieldRule
	Types   map[string]FieldRule
}

// DefaultFieldMap returns the rules for the LIMS entity types.
func DefaultFieldMap() FieldMap {
	return FieldMap{
		Default: FieldRule{
			Name: []string{"data.name", "data.organization", "data.counsellingName", "data.sampleId"},
			ID:   []string{"data.id", "data.sampleId", "data.invoiceNumber"},
		},
		Types: map[string]FieldRule{
			"leads": {
				Name: []string{"data.clientName"},
				ID:   []string{"data.leadId"},
			},
			"samples": {
				Name: []string{"data.patientName"},
			},
			"lab-processing": {
				Name: []string{"data.titleUniqueId"},
			},
			"finance": {
				Name: []string{"data.invoiceNumber"},
			},
			"genetic-counselling": {
				Name: []string{"data.patientName"},
			},
		},
	}
}

func (m FieldMap) rule(entityType string) FieldRule {
	extra, ok := m.Types[strings.ToLower(strings.TrimSpace(entityType))]
	if !ok {
		return m.Default
	}
	return FieldRule{
		Name: append(append([]string{}, m.Default.Name...), extra.Name...),
		ID:   append(append([]string{}, m.Default.ID...), extra.ID...),
	}
}

// Normalizer maps heterogeneous record shapes onto Entry.
type Normalizer struct {
	fields FieldMap
	now    func() time.Time
}

func NewNormalizer(fields FieldMap) *Normalizer {
	return &Normalizer{fields: fields, now: time.Now}
}

// NormalizeJSON decodes one server record and normalizes it. The record's
// data payload is kept byte for byte.
func (n *Normalizer) NormalizeJSON(raw []byte) (Entry, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	var record map[string]any
	if err := decoder.Decode(&record); err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	entry, err := n.Normalize(record)
	if err != nil {
		return Entry{}, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err == nil {
		for key, value := range fields {
			if canonicalKey(key) == "data" {
				entry.Data = verbatimData(value)
				break
			}
		}
	}

	return entry, nil
}

// Normalize maps a decoded server record onto Entry. It is pure apart from
// defaulting a missing deletion time to now.
func (n *Normalizer) Normalize(record map[string]any) (Entry, error) {
	data := dataObject(lookup(record, "data"))
	view := map[string]any{}
	for key, value := range record {
		view[key] = value
	}
	view["data"] = data

	entry := Entry{
		UID:          firstString(view, "uid", "id"),
		EntityType:   firstString(view, "entityType"),
		OriginalPath: firstString(view, "originalPath"),
		CreatedBy:    firstString(view, "createdBy"),
	}
	if entry.UID == "" {
		return Entry{}, fmt.Errorf("%w: missing id", ErrMalformedRecord)
	}
	if entry.EntityType == "" {
		return Entry{}, fmt.Errorf("%w: missing entity type", ErrMalformedRecord)
	}

	rule := n.fields.rule(entry.EntityType)
	entry.EntityID = firstString(view, append([]string{"entityId"}, rule.ID...)...)
	entry.Name = firstString(view, append([]string{"name"}, rule.Name...)...)
	entry.DeletedAt = n.deletedAt(view)

	if rawData := lookup(record, "data"); rawData != nil {
		encoded, err := encodeData(rawData)
		if err != nil {
			return Entry{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
		entry.Data = encoded
	}

	return entry, nil
}

// FromPayload builds an entry for a payload accepted without the server.
func (n *Normalizer) FromPayload(p Payload, uid string) Entry {
	entry := Entry{
		UID:          uid,
		EntityType:   strings.TrimSpace(p.EntityType),
		EntityID:     strings.TrimSpace(p.EntityID),
		Name:         strings.TrimSpace(p.Name),
		OriginalPath: p.OriginalPath,
		Data:         p.Data,
		DeletedAt:    p.DeletedAt.UTC(),
		CreatedBy:    p.CreatedBy,
	}

	if entry.DeletedAt.IsZero() {
		entry.DeletedAt = n.now().UTC()
	}

	if entry.Name == "" && len(p.Data) > 0 {
		var data any
		decoder := json.NewDecoder(bytes.NewReader(p.Data))
		decoder.UseNumber()
		if err := decoder.Decode(&data); err == nil {
			view := map[string]any{"data": dataObject(data)}
			entry.Name = firstString(view, n.fields.rule(entry.EntityType).Name...)
		}
	}

	return entry
}

func (n *Normalizer) deletedAt(view map[string]any) time.Time {
	for _, path := range []string{"deletedAt", "createdAt"} {
		if ts, ok := parseTime(lookup(view, path)); ok {
			return ts
		}
	}
	return n.now().UTC()
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(value any) (time.Time, bool) {
	switch v := value.(type) {
	case string:
		trimmed := strings.TrimSpace(v)
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, trimmed); err == nil {
				return ts.UTC(), true
			}
		}
	case json.Number:
		if millis, err := v.Int64(); err == nil && millis > 0 {
			return time.UnixMilli(millis).UTC(), true
		}
	case float64:
		if v > 0 {
			return time.UnixMilli(int64(v)).UTC(), true
		}
	}
	return time.Time{}, false
}

// canonicalKey folds case and underscores: sample_id, sampleId and SampleID
// name the same field.
func canonicalKey(key string) string {
	return strings.ToLower(strings.ReplaceAll(key, "_", ""))
}

func lookup(record map[string]any, path string) any {
	var current any = record
	for _, segment := range strings.Split(path, ".") {
		object, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = field(object, segment)
		if current == nil {
			return nil
		}
	}
	return current
}

func field(object map[string]any, name string) any {
	if value, ok := object[name]; ok {
		return value
	}
	want := canonicalKey(name)
	for key, value := range object {
		if canonicalKey(key) == want {
			return value
		}
	}
	return nil
}

func firstString(record map[string]any, paths ...string) string {
	for _, path := range paths {
		if s := stringify(lookup(record, path)); s != "" {
			return s
		}
	}
	return ""
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}

// dataObject returns the record's data as an object. Some backends store the
// snapshot as a JSON string.
func dataObject(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return v
	case string:
		decoder := json.NewDecoder(strings.NewReader(v))
		decoder.UseNumber()
		var decoded map[string]any
		if err := decoder.Decode(&decoded); err == nil {
			return decoded
		}
	case json.RawMessage:
		return dataObject(string(v))
	}
	return nil
}

func encodeData(value any) (json.RawMessage, error) {
	if s, ok := value.(string); ok && json.Valid([]byte(s)) {
		return json.RawMessage(s), nil
	}
	return json.Marshal(value)
}

func verbatimData(raw json.RawMessage) json.RawMessage {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	return append(json.RawMessage(nil), raw...)
}
