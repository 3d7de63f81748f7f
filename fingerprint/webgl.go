package fingerprint

import (
	"fmt"
)

// WebGLEntry holds the obfuscated property names under which the answer
// payload reports GPU data.  The interpreter renames these keys every
// build, but their positions in the VM string table relative to stable
// anchor strings ("getParameter", "WEBGL_debug_renderer_info",
// "UNMASKED_VENDOR_WEBGL", "substring", "info") do not move, so the keys
// are recovered by anchored offsets.
type WebGLEntry struct {
	MaskedGPUInfoKey      string
	MaskedVendorKey       string
	MaskedRendererKey     string
	UnmaskedGPUInfoKey    string
	UnmaskedVendorKey     string
	UnmaskedRendererKey   string
	NoNavigatorGPUDataKey string
	PrefixKey             string
	SuffixKey             string
	EncryptedContentKey   string
}

// ParseWebGLEntry recovers the WebGL payload keys from the VM string table.
// strings is the table in slot order, as decoded from the payload.
func ParseWebGLEntry(strings []string) (*WebGLEntry, error) {
	index := make(map[string]int, len(strings))
	for i, s := range strings {
		if _, seen := index[s]; !seen {
			index[s] = i
		}
	}

	at := func(anchor string, offset int) (string, error) {
		i, ok := index[anchor]
		if !ok {
			return "", fmt.Errorf("fingerprint: anchor %q not in string table", anchor)
		}
		j := i + offset
		if j < 0 || j >= len(strings) {
			return "", fmt.Errorf("fingerprint: anchor %q offset %d out of range", anchor, offset)
		}
		return strings[j], nil
	}

	entry := &WebGLEntry{}
	var err error
	if entry.MaskedGPUInfoKey, err = at("getParameter", -2); err != nil {
		return nil, err
	}
	if entry.MaskedVendorKey, err = at("getParameter", -1); err != nil {
		return nil, err
	}
	if entry.MaskedRendererKey, err = at("getParameter", 2); err != nil {
		return nil, err
	}
	if entry.UnmaskedGPUInfoKey, err = at("WEBGL_debug_renderer_info", 1); err != nil {
		return nil, err
	}
	if entry.UnmaskedVendorKey, err = at("WEBGL_debug_renderer_info", 2); err != nil {
		return nil, err
	}
	if entry.UnmaskedRendererKey, err = at("UNMASKED_VENDOR_WEBGL", 1); err != nil {
		return nil, err
	}
	if entry.PrefixKey, err = at("substring", -1); err != nil {
		return nil, err
	}
	if entry.SuffixKey, err = at("substring", 1); err != nil {
		return nil, err
	}
	if entry.NoNavigatorGPUDataKey, err = at("info", -1); err != nil {
		return nil, err
	}

	anchor := index[entry.UnmaskedGPUInfoKey]
	entry.EncryptedContentKey, err = findEncryptedContentKey(strings, entry, anchor)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// findEncryptedContentKey locates the key the result blob is stored under.
// It is an obfuscated short name with no anchor of its own; it sits in a
// cluster near the WebGL constant definitions, so a windowed scan around
// the unmasked-info anchor is tried first, then a whole-table scan over the
// typical 5-6 character lengths.
func findEncryptedContentKey(strings []string, entry *WebGLEntry, anchor int) (string, error) {
	known := map[string]bool{
		entry.MaskedGPUInfoKey:      true,
		entry.MaskedVendorKey:       true,
		entry.MaskedRendererKey:     true,
		entry.UnmaskedGPUInfoKey:    true,
		entry.UnmaskedVendorKey:     true,
		entry.UnmaskedRendererKey:   true,
		entry.PrefixKey:             true,
		entry.SuffixKey:             true,
		entry.NoNavigatorGPUDataKey: true,
		"getParameter":              true,
		"WEBGL_debug_renderer_info": true,
		"UNMASKED_VENDOR_WEBGL":     true,
	}

	start := anchor - 5
	if start < 0 {
		start = 0
	}
	end := anchor + 10
	if end > len(strings) {
		end = len(strings)
	}
	for _, s := range strings[start:end] {
		if len(s) >= 2 && len(s) <= 6 && !known[s] {
			return s, nil
		}
	}

	for _, s := range strings {
		if (len(s) == 5 || len(s) == 6) && !known[s] {
			return s, nil
		}
	}
	return "", fmt.Errorf("fingerprint: encrypted content key not found in string table")
}

// WriteEntry renders the GPU portion of the answer payload: the masked and
// unmasked vendor/renderer pairs nested under their recovered keys.
func (e *WebGLEntry) WriteEntry(info WebGLInfo) map[string]interface{} {
	return map[string]interface{}{
		e.MaskedGPUInfoKey: map[string]interface{}{
			e.MaskedVendorKey:   info.MaskedVendor,
			e.MaskedRendererKey: info.MaskedRenderer,
		},
		e.UnmaskedGPUInfoKey: map[string]interface{}{
			e.UnmaskedVendorKey:   info.UnmaskedVendor,
			e.UnmaskedRendererKey: info.UnmaskedRenderer,
		},
	}
}
