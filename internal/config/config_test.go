package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/wippyai/wasm-pack/errors"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	p := filepath.Join(dir, FileName)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_Defaults(t *testing.T) {
	cfg, resolved, err := Load(LoadOptions{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if resolved != "" {
		t.Errorf("resolved = %q, want no file", resolved)
	}
	if *cfg != Default() {
		t.Errorf("cfg = %+v, want %+v", *cfg, Default())
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	p := writeConfig(t, dir, `
out_dir = "dist"
verbose = true
format = "json"
wasi_version = "^1.2.0"
`)

	cfg, resolved, err := Load(LoadOptions{Dir: dir})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if resolved != p {
		t.Errorf("resolved = %q, want %q", resolved, p)
	}
	want := Config{OutDir: "dist", Verbose: true, Format: FormatJSON, WASIVersion: "^1.2.0"}
	if *cfg != want {
		t.Errorf("cfg = %+v, want %+v", *cfg, want)
	}
}

func TestLoad_Env(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `out_dir = "from-file"`)
	t.Setenv("WASM_PACK_OUT_DIR", "from-env")
	t.Setenv("WASM_PACK_VERBOSE", "true")

	cfg, _, err := Load(LoadOptions{Dir: dir})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.OutDir != "from-env" {
		t.Errorf("OutDir = %q, environment should win", cfg.OutDir)
	}
	if !cfg.Verbose {
		t.Error("Verbose should come from the environment")
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing explicit file", func(t *testing.T) {
		_, _, err := Load(LoadOptions{File: filepath.Join(t.TempDir(), "nope.toml")})
		if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseLoad, Kind: errors.KindNotFound}) {
			t.Errorf("got %v", err)
		}
	})

	t.Run("malformed file", func(t *testing.T) {
		p := writeConfig(t, t.TempDir(), "out_dir = [")
		_, _, err := Load(LoadOptions{File: p})
		if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseLoad, Kind: errors.KindInvalidData}) {
			t.Errorf("got %v", err)
		}
	})

	t.Run("bad format", func(t *testing.T) {
		p := writeConfig(t, t.TempDir(), `format = "yaml"`)
		_, _, err := Load(LoadOptions{File: p})
		if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseValidate, Kind: errors.KindInvalidInput}) {
			t.Errorf("got %v", err)
		}
	})
}
