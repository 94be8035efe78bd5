// Package scenepkg builds and verifies checksummed scene artifacts (channel
// contracts and shareable scene packages) and plans package imports.
// This is part of the Functional Core - no I/O, only pure functions.
package scenepkg

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/example/scenegov/internal/core/scene"
)

// Schema versions written into artifacts.
const (
	ContractSchemaVersion = "scene-contract/v1"
	PackageSchemaVersion  = "scene-package/v1"
)

// ErrChecksumMismatch is returned when an artifact's scenes do not hash to its checksum.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// Contract is the versioned scene set a channel serves.
type Contract struct {
	SchemaVersion string        `json:"schema_version"`
	SceneVersion  string        `json:"scene_version"`
	Channel       string        `json:"channel"`
	Checksum      string        `json:"checksum"`
	Scenes        []scene.Scene `json:"scenes"`
}

// BuildContract canonicalizes scenes and stamps checksum and scene version.
func BuildContract(c scene.Channel, scenes []scene.Scene) (Contract, error) {
	canon := scene.Canonicalize(scenes)
	sum, err := scene.Checksum(canon)
	if err != nil {
		return Contract{}, fmt.Errorf("failed to checksum contract: %w", err)
	}
	if canon == nil {
		canon = []scene.Scene{}
	}
	return Contract{
		SchemaVersion: ContractSchemaVersion,
		SceneVersion:  scene.VersionFromChecksum(sum),
		Channel:       string(c),
		Checksum:      sum,
		Scenes:        canon,
	}, nil
}

// Encode renders the contract as indented JSON.
func (c Contract) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode contract: %w", err)
	}
	return append(data, '\n'), nil
}

// DecodeContract parses a contract artifact and verifies its checksum.
func DecodeContract(data []byte) (Contract, error) {
	var c Contract
	if err := json.Unmarshal(data, &c); err != nil {
		return Contract{}, fmt.Errorf("failed to decode contract: %w", err)
	}
	sum, err := scene.Checksum(c.Scenes)
	if err != nil {
		return Contract{}, fmt.Errorf("failed to checksum contract: %w", err)
	}
	if sum != c.Checksum {
		return Contract{}, fmt.Errorf("contract %s: %w", c.Channel, ErrChecksumMismatch)
	}
	return c, nil
}
