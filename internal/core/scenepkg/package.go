package scenepkg

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/example/scenegov/internal/core/scene"
)

// Package is a shareable, checksummed bundle of scenes for one channel.
type Package struct {
	SchemaVersion  string        `json:"schema_version" validate:"required"`
	PackageName    string        `json:"package_name" validate:"required,pkgname"`
	PackageVersion string        `json:"package_version" validate:"required,max=64,pkgversion"`
	SceneChannel   string        `json:"scene_channel" validate:"required,oneof=stable beta dev"`
	Checksum       string        `json:"checksum" validate:"required,len=64,hexadecimal"`
	Scenes         []scene.Scene `json:"scenes"`
}

var (
	packageNamePattern    = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]{0,63}$`)
	packageVersionPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.+-]*$`)
	packageValidate       *validator.Validate
)

func init() {
	packageValidate = validator.New()
	_ = packageValidate.RegisterValidation("pkgname", func(fl validator.FieldLevel) bool {
		return packageNamePattern.MatchString(fl.Field().String())
	})
	_ = packageValidate.RegisterValidation("pkgversion", func(fl validator.FieldLevel) bool {
		return packageVersionPattern.MatchString(fl.Field().String())
	})
}

// ValidName reports whether name may be used as a package name.
func ValidName(name string) bool {
	return packageNamePattern.MatchString(name)
}

// ValidVersion reports whether version may be used as a package version.
func ValidVersion(version string) bool {
	return len(version) <= 64 && packageVersionPattern.MatchString(version)
}

// Ref returns the artifact reference of a package file.
func Ref(name, version string) string {
	return "packages/" + name + "-" + version + ".json"
}

// Build assembles a package from scenes, canonicalizing them and computing the checksum.
func Build(name, version string, c scene.Channel, scenes []scene.Scene) (Package, error) {
	canon := scene.Canonicalize(scenes)
	sum, err := scene.Checksum(canon)
	if err != nil {
		return Package{}, fmt.Errorf("failed to checksum package: %w", err)
	}
	if canon == nil {
		canon = []scene.Scene{}
	}
	p := Package{
		SchemaVersion:  PackageSchemaVersion,
		PackageName:    name,
		PackageVersion: version,
		SceneChannel:   string(c),
		Checksum:       sum,
		Scenes:         canon,
	}
	if err := p.Validate(); err != nil {
		return Package{}, err
	}
	return p, nil
}

// Validate checks the package header fields.
func (p Package) Validate() error {
	if err := packageValidate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid package: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid package: %w", err)
	}
	return nil
}

// Verify validates the header and checks the checksum against the scenes.
func (p Package) Verify() error {
	if err := p.Validate(); err != nil {
		return err
	}
	sum, err := scene.Checksum(p.Scenes)
	if err != nil {
		return fmt.Errorf("failed to checksum package: %w", err)
	}
	if sum != p.Checksum {
		return fmt.Errorf("package %s-%s: %w", p.PackageName, p.PackageVersion, ErrChecksumMismatch)
	}
	return nil
}

// Encode renders the package as indented JSON.
func (p Package) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode package: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses a package file. The checksum is not verified; call Verify.
func Decode(data []byte) (Package, error) {
	var p Package
	if err := json.Unmarshal(data, &p); err != nil {
		return Package{}, fmt.Errorf("failed to decode package: %w", err)
	}
	return p, nil
}
