package scene

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Canonicalize returns a deep-copied, deterministically ordered form of scenes.
// Scenes are sorted by key; set-like string lists (capabilities, channels,
// hidden columns) are sorted and de-duplicated; ordered lists (columns,
// breadcrumbs, tiles) keep their order. Empty collections collapse to nil.
// Map keys need no pass here: encoding/json always emits them sorted.
func Canonicalize(scenes []Scene) []Scene {
	out := make([]Scene, len(scenes))
	for i, s := range scenes {
		c := s.Clone()
		c.Capabilities = sortedSet(c.Capabilities)
		c.Channels = sortedSet(c.Channels)
		if c.ListProfile != nil {
			c.ListProfile.Columns = nilIfEmpty(c.ListProfile.Columns)
			c.ListProfile.HiddenColumns = sortedSet(c.ListProfile.HiddenColumns)
			if len(c.ListProfile.ColumnLabels) == 0 {
				c.ListProfile.ColumnLabels = nil
			}
			if c.ListProfile.Columns == nil && c.ListProfile.HiddenColumns == nil &&
				c.ListProfile.ColumnLabels == nil && c.ListProfile.DefaultSort == "" {
				c.ListProfile = nil
			}
		}
		if len(c.Breadcrumbs) == 0 {
			c.Breadcrumbs = nil
		}
		if len(c.Tiles) == 0 {
			c.Tiles = nil
		}
		out[i] = c
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Checksum returns the hex SHA-256 of the canonical JSON encoding of scenes.
func Checksum(scenes []Scene) (string, error) {
	data, err := CanonicalJSON(scenes)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// CanonicalJSON encodes the canonical form of scenes without indentation.
func CanonicalJSON(scenes []Scene) ([]byte, error) {
	canon := Canonicalize(scenes)
	if canon == nil {
		canon = []Scene{}
	}
	data, err := json.Marshal(canon)
	if err != nil {
		return nil, fmt.Errorf("failed to encode canonical scenes: %w", err)
	}
	return data, nil
}

// VersionFromChecksum derives the short scene_version tag carried by contracts.
func VersionFromChecksum(checksum string) string {
	if len(checksum) > 12 {
		return checksum[:12]
	}
	return checksum
}

func sortedSet(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}

func nilIfEmpty(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	return in
}
