package fingerprint_test

import (
	"testing"

	"github.com/firasghr/GoChallengeSolver/fingerprint"
)

// vmStringTable mirrors the layout of a decoded VM string table around the
// WebGL anchors: obfuscated short keys interleaved with the stable API
// constant names.
func vmStringTable() []string {
	return []string{
		"toString",
		"gq",                 // masked gpu info key      (getParameter -2)
		"vx",                 // masked vendor key        (getParameter -1)
		"getParameter",       //                          anchor
		"toDataURL",          //                          (getParameter +1)
		"rz",                 // masked renderer key      (getParameter +2)
		"WEBGL_debug_renderer_info", // anchor
		"ug",                 // unmasked gpu info key    (+1)
		"uv",                 // unmasked vendor key      (+2)
		"enckey",             // encrypted content key, near the anchor cluster
		"UNMASKED_VENDOR_WEBGL", // anchor
		"ur",                 // unmasked renderer key    (+1)
		"pf",                 // prefix key               (substring -1)
		"substring",          // anchor
		"sf",                 // suffix key               (substring +1)
		"nn",                 // no-navigator-data key    (info -1)
		"info",               // anchor
	}
}

func TestParseWebGLEntry_AnchoredOffsets(t *testing.T) {
	entry, err := fingerprint.ParseWebGLEntry(vmStringTable())
	if err != nil {
		t.Fatalf("parse webgl entry: %v", err)
	}

	cases := []struct {
		field string
		got   string
		want  string
	}{
		{"masked gpu info", entry.MaskedGPUInfoKey, "gq"},
		{"masked vendor", entry.MaskedVendorKey, "vx"},
		{"masked renderer", entry.MaskedRendererKey, "rz"},
		{"unmasked gpu info", entry.UnmaskedGPUInfoKey, "ug"},
		{"unmasked vendor", entry.UnmaskedVendorKey, "uv"},
		{"unmasked renderer", entry.UnmaskedRendererKey, "ur"},
		{"prefix", entry.PrefixKey, "pf"},
		{"suffix", entry.SuffixKey, "sf"},
		{"no navigator data", entry.NoNavigatorGPUDataKey, "nn"},
		{"encrypted content", entry.EncryptedContentKey, "enckey"},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Errorf("%s key = %q, want %q", tc.field, tc.got, tc.want)
		}
	}
}

func TestParseWebGLEntry_MissingAnchor(t *testing.T) {
	table := []string{"a", "b", "getParameter", "c", "d"}
	if _, err := fingerprint.ParseWebGLEntry(table); err == nil {
		t.Fatal("expected error for table without all anchors")
	}
}

func TestWebGLEntry_WriteEntry(t *testing.T) {
	entry, err := fingerprint.ParseWebGLEntry(vmStringTable())
	if err != nil {
		t.Fatalf("parse webgl entry: %v", err)
	}

	info := fingerprint.WebGLInfo{
		MaskedVendor:     "WebKit",
		MaskedRenderer:   "WebKit WebGL",
		UnmaskedVendor:   "Google Inc. (NVIDIA)",
		UnmaskedRenderer: "ANGLE (NVIDIA, ...)",
	}
	out := entry.WriteEntry(info)

	masked, ok := out["gq"].(map[string]interface{})
	if !ok {
		t.Fatalf("masked object missing under %q: %#v", "gq", out)
	}
	if masked["vx"] != "WebKit" || masked["rz"] != "WebKit WebGL" {
		t.Errorf("masked object = %#v", masked)
	}

	unmasked, ok := out["ug"].(map[string]interface{})
	if !ok {
		t.Fatalf("unmasked object missing under %q: %#v", "ug", out)
	}
	if unmasked["uv"] != "Google Inc. (NVIDIA)" || unmasked["ur"] != "ANGLE (NVIDIA, ...)" {
		t.Errorf("unmasked object = %#v", unmasked)
	}
}
