package container

import (
	"os"
	"path"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/wippyai/wasm-pack/errors"
)

// Manifest file names FromDirectory looks for, in order.
var manifestFiles = []string{"wasmer.toml", "wapm.toml"}

// MetadataVolume is the volume interface files are packed into.
const MetadataVolume = "metadata"

// PackageConfig is the wasmer.toml package description.
type PackageConfig struct {
	Package  PackageSection  `toml:"package"`
	Modules  []ModuleSection `toml:"module"`
	Commands []CommandConfig `toml:"command"`
}

// PackageSection is the [package] table.
type PackageSection struct {
	Name        string `toml:"name"`
	Version     string `toml:"version"`
	Description string `toml:"description"`
}

// ModuleSection is one [[module]] entry.
type ModuleSection struct {
	Name     string          `toml:"name"`
	Source   string          `toml:"source"`
	Abi      string          `toml:"abi"`
	Bindings *BindingsConfig `toml:"bindings"`
}

// BindingsConfig is a module's [module.bindings] table. Exactly one of
// WaiVersion and WitBindgen is set.
type BindingsConfig struct {
	WaiVersion string   `toml:"wai-version"`
	Exports    string   `toml:"exports"`
	Imports    []string `toml:"imports"`
	WitBindgen string   `toml:"wit-bindgen"`
	WitExports string   `toml:"wit-exports"`
}

// CommandConfig is one [[command]] entry.
type CommandConfig struct {
	Name   string `toml:"name"`
	Module string `toml:"module"`
	Runner string `toml:"runner"`
}

// LoadPackageConfig reads wasmer.toml (or the older wapm.toml) from dir.
func LoadPackageConfig(dir string) (*PackageConfig, error) {
	for _, name := range manifestFiles {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, errors.Wrap(errors.PhaseLoad, errors.KindIO, err, "read "+name)
		}
		var cfg PackageConfig
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.ParseFailed(name, err)
		}
		return &cfg, nil
	}
	return nil, errors.New(errors.PhaseLoad, errors.KindNotFound).
		Path(dir).
		Detail("no wasmer.toml or wapm.toml").
		Build()
}

// FromDirectory packs a package directory into container bytes. Modules
// become atoms, interface files go into the metadata volume, and each
// module with bindings becomes a library binding.
func FromDirectory(dir string) ([]byte, error) {
	cfg, err := LoadPackageConfig(dir)
	if err != nil {
		return nil, err
	}
	b, err := cfg.Builder(dir)
	if err != nil {
		return nil, err
	}
	return b.Encode()
}

// Builder converts the configuration into a container builder, reading
// module and interface files relative to dir.
func (cfg *PackageConfig) Builder(dir string) (*Builder, error) {
	if cfg.Package.Name == "" || cfg.Package.Version == "" {
		return nil, errors.InvalidInput(errors.PhaseLoad, "[package] needs a name and a version")
	}

	b := NewBuilder(cfg.Package.Name, cfg.Package.Version).Description(cfg.Package.Description)
	read := func(rel string) ([]byte, error) {
		data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
		if err != nil {
			return nil, errors.New(errors.PhaseLoad, errors.KindIO).Path(rel).Cause(err).Detail("read package file").Build()
		}
		return data, nil
	}

	modules := make(map[string]bool, len(cfg.Modules))
	for _, m := range cfg.Modules {
		if m.Name == "" || m.Source == "" {
			return nil, errors.InvalidInput(errors.PhaseLoad, "[[module]] needs a name and a source")
		}
		wasm, err := read(m.Source)
		if err != nil {
			return nil, err
		}
		b.Atom(m.Name, wasm)
		modules[m.Name] = true

		if m.Bindings == nil {
			continue
		}
		if err := addBindings(b, m, read); err != nil {
			return nil, err
		}
	}

	for _, c := range cfg.Commands {
		if !modules[c.Module] {
			return nil, errors.NotFound(errors.PhaseLoad, "module", c.Module)
		}
		b.Command(c.Name, c.Module)
	}

	return b, nil
}

func addBindings(b *Builder, m ModuleSection, read func(string) ([]byte, error)) error {
	pack := func(rel string) (string, error) {
		data, err := read(rel)
		if err != nil {
			return "", err
		}
		p := path.Clean(filepath.ToSlash(rel))
		b.File(MetadataVolume, p, data)
		return MetadataVolume + "://" + p, nil
	}
	module := "atoms://" + m.Name
	bc := m.Bindings

	switch {
	case bc.WaiVersion != "":
		exports, err := pack(bc.Exports)
		if err != nil {
			return err
		}
		wai := WaiBindings{Exports: exports, Module: module}
		for _, imp := range bc.Imports {
			ref, err := pack(imp)
			if err != nil {
				return err
			}
			wai.Imports = append(wai.Imports, ref)
		}
		b.WaiBinding("library-bindings", bc.WaiVersion, wai)

	case bc.WitBindgen != "":
		exports, err := pack(bc.WitExports)
		if err != nil {
			return err
		}
		b.WitBinding("library-bindings", bc.WitBindgen, WitBindings{Exports: exports, Module: module})

	default:
		return errors.New(errors.PhaseLoad, errors.KindUnsupported).
			Path("module", m.Name, "bindings").
			Detail("bindings need either wai-version or wit-bindgen").
			Build()
	}
	return nil
}
