package media

import (
	"fmt"
	"sync"
)

// Kind is the type of a Meta value.
type Kind int

const (
	KindInt32 Kind = iota + 1
	KindInt64
	KindFloat32
	KindFloat64
	KindString
	KindBytes
	KindFraction
	KindRect
	KindObject
)

// Fraction is a rational value such as a frame rate or aspect ratio.
type Fraction struct {
	Num int32
	Den int32
}

// Rect is a crop or display rectangle.
type Rect struct {
	Left   int32
	Top    int32
	Right  int32
	Bottom int32
}

// Well-known attribute keys.
const (
	KeyWidth     = "width"
	KeyHeight    = "height"
	KeyFrameRate = "frame-rate"
	KeyCrop      = "crop"
	KeyMime      = "mime"
	KeyStreamID  = "stream-id"
)

type metaItem struct {
	kind  Kind
	value any
}

// Meta is a small typed key/value set. It is safe for concurrent use.
type Meta struct {
	mu    sync.RWMutex
	items map[string]metaItem
}

// NewMeta returns an empty Meta.
func NewMeta() *Meta {
	return &Meta{items: make(map[string]metaItem)}
}

func (m *Meta) set(key string, kind Kind, v any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = metaItem{kind: kind, value: v}
}

func (m *Meta) get(key string, kind Kind) (any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.items[key]
	if !ok {
		return nil, nil
	}
	if it.kind != kind {
		return nil, fmt.Errorf("%w: key %q", ErrKindMismatch, key)
	}
	return it.value, nil
}

// Has reports whether key is set.
func (m *Meta) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.items[key]
	return ok
}

// Remove deletes key.
func (m *Meta) Remove(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
}

// Len returns the number of attributes.
func (m *Meta) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// SetInt32 stores an int32.
func (m *Meta) SetInt32(key string, v int32) { m.set(key, KindInt32, v) }

// SetInt64 stores an int64.
func (m *Meta) SetInt64(key string, v int64) { m.set(key, KindInt64, v) }

// SetFloat32 stores a float32.
func (m *Meta) SetFloat32(key string, v float32) { m.set(key, KindFloat32, v) }

// SetFloat64 stores a float64.
func (m *Meta) SetFloat64(key string, v float64) { m.set(key, KindFloat64, v) }

// SetString stores a string.
func (m *Meta) SetString(key string, v string) { m.set(key, KindString, v) }

// SetBytes stores a copy of v.
func (m *Meta) SetBytes(key string, v []byte) {
	m.set(key, KindBytes, append([]byte(nil), v...))
}

// SetFraction stores a Fraction.
func (m *Meta) SetFraction(key string, v Fraction) { m.set(key, KindFraction, v) }

// SetRect stores a Rect.
func (m *Meta) SetRect(key string, v Rect) { m.set(key, KindRect, v) }

// SetObject stores an arbitrary shared object.
func (m *Meta) SetObject(key string, v any) { m.set(key, KindObject, v) }

// Int32 returns the int32 at key.
func (m *Meta) Int32(key string) (int32, bool, error) {
	v, err := m.get(key, KindInt32)
	if v == nil || err != nil {
		return 0, false, err
	}
	return v.(int32), true, nil
}

// Int64 returns the int64 at key.
func (m *Meta) Int64(key string) (int64, bool, error) {
	v, err := m.get(key, KindInt64)
	if v == nil || err != nil {
		return 0, false, err
	}
	return v.(int64), true, nil
}

// Float32 returns the float32 at key.
func (m *Meta) Float32(key string) (float32, bool, error) {
	v, err := m.get(key, KindFloat32)
	if v == nil || err != nil {
		return 0, false, err
	}
	return v.(float32), true, nil
}

// Float64 returns the float64 at key.
func (m *Meta) Float64(key string) (float64, bool, error) {
	v, err := m.get(key, KindFloat64)
	if v == nil || err != nil {
		return 0, false, err
	}
	return v.(float64), true, nil
}

// String returns the string at key.
func (m *Meta) String(key string) (string, bool, error) {
	v, err := m.get(key, KindString)
	if v == nil || err != nil {
		return "", false, err
	}
	return v.(string), true, nil
}

// Bytes returns the byte slice at key.
func (m *Meta) Bytes(key string) ([]byte, bool, error) {
	v, err := m.get(key, KindBytes)
	if v == nil || err != nil {
		return nil, false, err
	}
	return v.([]byte), true, nil
}

// Fraction returns the Fraction at key.
func (m *Meta) Fraction(key string) (Fraction, bool, error) {
	v, err := m.get(key, KindFraction)
	if v == nil || err != nil {
		return Fraction{}, false, err
	}
	return v.(Fraction), true, nil
}

// Rect returns the Rect at key.
func (m *Meta) Rect(key string) (Rect, bool, error) {
	v, err := m.get(key, KindRect)
	if v == nil || err != nil {
		return Rect{}, false, err
	}
	return v.(Rect), true, nil
}

// Object returns the object at key.
func (m *Meta) Object(key string) (any, bool, error) {
	v, err := m.get(key, KindObject)
	if v == nil || err != nil {
		return nil, false, err
	}
	return v, true, nil
}
