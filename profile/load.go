package profile

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/ardnew/musb/pkg"
)

// Format is a profile file encoding.
type Format int

// Profile encodings.
const (
	FormatYAML Format = iota
	FormatTOML
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatYAML:
		return "yaml"
	case FormatTOML:
		return "toml"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// FormatOf chooses a format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return 0, fmt.Errorf("profile: %s: %w: unrecognized extension", path, pkg.ErrNotSupported)
	}
}

// Load reads and validates the profile at path.
func Load(path string) (*Profile, error) {
	f, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	p, err := Parse(data, f)
	if err != nil {
		return nil, fmt.Errorf("profile: %s: %w", path, err)
	}
	pkg.LogDebug(pkg.ComponentProfile, "loaded profile", "path", path, "name", p.Name)
	return p, nil
}

// Resolve returns the builtin profile called name, or loads name as a file
// when no builtin matches.
func Resolve(name string) (*Profile, error) {
	if p, err := Builtin(name); err == nil {
		return p, nil
	}
	if _, err := FormatOf(name); err != nil {
		return nil, fmt.Errorf("%w: %q", pkg.ErrUnknownProfile, name)
	}
	return Load(name)
}

// Parse decodes and validates a profile.
func Parse(data []byte, f Format) (*Profile, error) {
	var p Profile
	switch f {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&p); err != nil {
			return nil, fmt.Errorf("%w: %v", pkg.ErrInvalidProfile, err)
		}
	case FormatTOML:
		md, err := toml.Decode(string(data), &p)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", pkg.ErrInvalidProfile, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("%w: unknown key %q", pkg.ErrInvalidProfile, undecoded[0].String())
		}
	default:
		return nil, fmt.Errorf("profile: format %v: %w", f, pkg.ErrNotSupported)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Marshal encodes p.
func Marshal(p *Profile, f Format) ([]byte, error) {
	switch f {
	case FormatYAML:
		return yaml.Marshal(p)
	case FormatTOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(p); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("profile: format %v: %w", f, pkg.ErrNotSupported)
	}
}
