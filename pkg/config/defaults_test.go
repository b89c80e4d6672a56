package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paramforge/paramforge/pkg/domain"
)

func TestLoadDefaults_Formats(t *testing.T) {
	c := loadCasc(t)
	dir := t.TempDir()

	files := map[string]string{
		"defaults.yaml": "TT_DATA: cint16\nTP_SSR: 2\nTP_WINDOW_VSIZE: \"512\"\n",
		"defaults.json": `{"TT_DATA": "cint16", "TP_SSR": 2, "TP_WINDOW_VSIZE": 512}`,
		"defaults.cue":  "TT_DATA: \"cint16\"\nTP_SSR: 2\nTP_WINDOW_VSIZE: 256 * 2\n",
		"defaults.star": "_lanes = 8\nTT_DATA = \"c\" + \"int16\"\nTP_SSR = 2\nTP_WINDOW_VSIZE = _lanes * 64\n",
	}

	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatal(err)
			}

			got, err := LoadDefaults(context.Background(), path, c)
			if err != nil {
				t.Fatalf("LoadDefaults failed: %v", err)
			}
			if len(got) != 3 {
				t.Fatalf("expected 3 defaults, got %v", got)
			}
			if !got["TT_DATA"].Equal(domain.Str("cint16")) {
				t.Errorf("TT_DATA = %s", got["TT_DATA"])
			}
			if !got["TP_SSR"].Equal(domain.Int(2)) {
				t.Errorf("TP_SSR = %s", got["TP_SSR"])
			}
			if !got["TP_WINDOW_VSIZE"].Equal(domain.Int(512)) {
				t.Errorf("TP_WINDOW_VSIZE = %s", got["TP_WINDOW_VSIZE"])
			}
		})
	}
}

func TestLoadDefaults_UnknownParameter(t *testing.T) {
	c := loadCasc(t)
	path := filepath.Join(t.TempDir(), "defaults.yaml")
	if err := os.WriteFile(path, []byte("TP_SSR: 2\nTP_FFT_SIZE: 64\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadDefaults(context.Background(), path, c)
	var verrs ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) != 1 {
		t.Fatalf("expected one validation error, got %v", err)
	}
	if verrs[0].Path != "TP_FFT_SIZE" {
		t.Errorf("expected the unknown name in the path, got %+v", verrs[0])
	}
}

func TestParseAssignments(t *testing.T) {
	c := loadCasc(t)

	got, err := ParseAssignments(c, []string{"TP_SSR=4", " TT_DATA = int32 "})
	if err != nil {
		t.Fatalf("ParseAssignments failed: %v", err)
	}
	if !got["TP_SSR"].Equal(domain.Int(4)) || !got["TT_DATA"].Equal(domain.Str("int32")) {
		t.Errorf("unexpected assignments %v", got)
	}

	for _, bad := range []string{"TP_SSR", "=4", "TP_SSR=four"} {
		if _, err := ParseAssignments(c, []string{bad}); err == nil {
			t.Errorf("expected %q to be rejected", bad)
		} else if !strings.Contains(err.Error(), "TP_SSR") && bad != "=4" {
			t.Errorf("expected the error for %q to name the parameter, got %v", bad, err)
		}
	}
}
