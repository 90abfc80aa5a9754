// Package confloader provides configuration loading for DocMesh.
package confloader

import (
	"errors"

	"github.com/knadh/koanf/maps"
)

// ErrReadBytesNotSupported is returned when ReadBytes is called on a map provider.
var ErrReadBytesNotSupported = errors.New("confloader: ReadBytes not supported by map provider, use Read() instead")

// mapProvider is a simple koanf provider that loads configuration from a map.
//
// koanf.Provider supports either ReadBytes() or Read() depending on the
// provider implementation; for map-based providers Read() is the right one.
type mapProvider map[string]any

// ReadBytes returns an error as map provider doesn't support byte serialization.
func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, ErrReadBytesNotSupported
}

// Read returns the configuration map. Dotted keys ("peering.port")
// are expanded into the nested form koanf merges from.
func (m mapProvider) Read() (map[string]any, error) {
	cp := maps.Copy(m)
	maps.IntfaceKeysToStrings(cp)
	return maps.Unflatten(cp, "."), nil
}
