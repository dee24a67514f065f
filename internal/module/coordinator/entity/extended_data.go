package entity

import "fmt"

// extendedDataEntry holds one extended data value with its storage flags.
type extendedDataEntry struct {
	value              any
	encryptionRequired bool
	mayBePersisted     bool
}

// ExtendedData carries arbitrary gateway-specific data attached to an
// instruction or transaction. Each key carries flags telling the persistence
// collaborator whether the value must be encrypted at rest and whether it may
// be written at all (e.g. raw card data is usually neither).
type ExtendedData struct {
	entries map[string]extendedDataEntry
}

// NewExtendedData creates an empty ExtendedData.
func NewExtendedData() *ExtendedData {
	return &ExtendedData{entries: make(map[string]extendedDataEntry)}
}

// Set stores a plain value that may be persisted unencrypted.
func (d *ExtendedData) Set(name string, value any) {
	d.entries[name] = extendedDataEntry{value: value, mayBePersisted: true}
}

// SetWithOptions stores a value with explicit storage flags. A value that
// requires encryption but may not be persisted is rejected.
func (d *ExtendedData) SetWithOptions(name string, value any, encrypt, persist bool) error {
	if encrypt && !persist {
		return ErrEncryptedNotPersisted
	}
	d.entries[name] = extendedDataEntry{value: value, encryptionRequired: encrypt, mayBePersisted: persist}
	return nil
}

// Get returns the value stored under name.
func (d *ExtendedData) Get(name string) (any, error) {
	e, ok := d.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDataKey, name)
	}
	return e.value, nil
}

// Has reports whether a value is stored under name.
func (d *ExtendedData) Has(name string) bool {
	_, ok := d.entries[name]
	return ok
}

// Remove deletes the value stored under name. Removing an absent key is a
// no-op.
func (d *ExtendedData) Remove(name string) {
	delete(d.entries, name)
}

// IsEncryptionRequired reports whether the value under name must be encrypted
// before it is persisted.
func (d *ExtendedData) IsEncryptionRequired(name string) (bool, error) {
	e, ok := d.entries[name]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownDataKey, name)
	}
	return e.encryptionRequired, nil
}

// MayBePersisted reports whether the value under name may be written by the
// persistence collaborator.
func (d *ExtendedData) MayBePersisted(name string) (bool, error) {
	e, ok := d.entries[name]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownDataKey, name)
	}
	return e.mayBePersisted, nil
}

// Len returns the number of stored keys.
func (d *ExtendedData) Len() int {
	return len(d.entries)
}

// Keys returns the stored key names in unspecified order.
func (d *ExtendedData) Keys() []string {
	keys := make([]string, 0, len(d.entries))
	for k := range d.entries {
		keys = append(keys, k)
	}
	return keys
}
