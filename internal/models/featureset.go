package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// FeatureSet maps feature names to enabled flags. Persisted as a JSONB
// column; unknown names deserialise fine but are never reported enabled by
// the entitlement checker.
type FeatureSet map[Feature]bool

// Enabled reports whether the named feature is switched on.
func (f FeatureSet) Enabled(feature Feature) bool {
	if f == nil {
		return false
	}
	return f[feature]
}

// Value implements driver.Valuer for JSONB storage.
func (f FeatureSet) Value() (driver.Value, error) {
	if f == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(f)
}

// Scan implements sql.Scanner for JSONB storage.
func (f *FeatureSet) Scan(src interface{}) error {
	if src == nil {
		*f = FeatureSet{}
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported feature set source %T", src)
	}
	if len(raw) == 0 {
		*f = FeatureSet{}
		return nil
	}
	return json.Unmarshal(raw, f)
}
