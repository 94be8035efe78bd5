package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/scenegov/internal/core/diagnostics"
	"github.com/example/scenegov/internal/core/governance"
	"github.com/example/scenegov/internal/core/resolver"
	"github.com/example/scenegov/internal/core/scene"
	"github.com/example/scenegov/internal/core/scenepkg"
	"github.com/example/scenegov/internal/ports/secondary"
)

// WarnPinnedContractMissing is reported when a pinned evaluation finds no pinned contract.
const WarnPinnedContractMissing = "pinned_contract_missing"

// CatalogSettings are the diagnostics inputs that come from configuration.
type CatalogSettings struct {
	CriticalScenes []string
	Exemptions     resolver.Exemptions
	Customizations []diagnostics.Customization
}

// SceneCatalog assembles the scene set a channel serves and runs diagnostics over it.
type SceneCatalog struct {
	registry   secondary.SceneSource
	navigation secondary.NavigationSource
	debt       secondary.DebtSource
	artifacts  secondary.ArtifactStore
	settings   CatalogSettings
	logger     *zap.Logger
}

// NewSceneCatalog creates a SceneCatalog with injected sources.
func NewSceneCatalog(
	registry secondary.SceneSource,
	navigation secondary.NavigationSource,
	debt secondary.DebtSource,
	artifacts secondary.ArtifactStore,
	settings CatalogSettings,
	logger *zap.Logger,
) *SceneCatalog {
	return &SceneCatalog{
		registry:   registry,
		navigation: navigation,
		debt:       debt,
		artifacts:  artifacts,
		settings:   settings,
		logger:     logger,
	}
}

// sceneSet is the raw scene list of a channel plus the origin of imported scenes.
type sceneSet struct {
	Channel scene.Channel
	Scenes  []scene.Scene
	Sources map[string]string
}

func packageSource(name, version string) string {
	return "package:" + name + "@" + version
}

// liveScenes returns the declared scenes published on ch plus every scene
// imported onto ch, except those installed by excludePackage.
func (c *SceneCatalog) liveScenes(ctx context.Context, tx secondary.ReadTx, ch scene.Channel, excludePackage string) (sceneSet, error) {
	declared, err := c.registry.LoadScenes(ctx)
	if err != nil {
		return sceneSet{}, err
	}
	imported, err := tx.ListScenes(ctx, string(ch))
	if err != nil {
		return sceneSet{}, fmt.Errorf("failed to list imported scenes: %w", err)
	}

	set := sceneSet{
		Channel: ch,
		Scenes:  scene.ForChannel(declared, ch),
		Sources: make(map[string]string, len(imported)),
	}
	for _, rec := range imported {
		if excludePackage != "" && rec.PackageName == excludePackage {
			continue
		}
		s, err := decodeSceneRecord(rec)
		if err != nil {
			return sceneSet{}, err
		}
		set.Scenes = append(set.Scenes, s)
		set.Sources[s.Key] = packageSource(rec.PackageName, rec.PackageVersion)
	}
	return set, nil
}

// pinnedSet returns the pinned contract as a scene set.
func pinnedSet(pinned *scenepkg.Contract) sceneSet {
	sources := make(map[string]string, len(pinned.Scenes))
	for _, s := range pinned.Scenes {
		sources[s.Key] = governance.PinnedRef
	}
	return sceneSet{Channel: scene.ChannelStable, Scenes: pinned.Scenes, Sources: sources}
}

// contract builds the contract of the valid scenes of set.
func (c *SceneCatalog) contract(set sceneSet) (scenepkg.Contract, error) {
	return scenepkg.BuildContract(set.Channel, scene.NewRegistry(set.Scenes).Scenes())
}

// pinned reads the pinned stable contract. It returns nil when nothing was pinned yet.
func (c *SceneCatalog) pinned(ctx context.Context) (*scenepkg.Contract, error) {
	data, err := c.artifacts.Read(ctx, governance.PinnedRef)
	if errors.Is(err, secondary.ErrArtifactNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read pinned contract: %w", err)
	}
	contract, err := scenepkg.DecodeContract(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load pinned contract: %w", err)
	}
	return &contract, nil
}

// diagnosisInputs are the file-backed inputs of a diagnostics pass.
type diagnosisInputs struct {
	Nodes []resolver.Node
	Debt  []diagnostics.DebtEntry
}

func (c *SceneCatalog) loadInputs(ctx context.Context) (diagnosisInputs, error) {
	nodes, err := c.navigation.LoadNavigation(ctx)
	if err != nil {
		return diagnosisInputs{}, err
	}
	debt, err := c.debt.LoadDebt(ctx)
	if err != nil {
		return diagnosisInputs{}, err
	}
	return diagnosisInputs{Nodes: nodes, Debt: debt}, nil
}

// diagnosis is the resolver and diagnostics output for one scene set.
type diagnosis struct {
	Resolution resolver.Result
	Report     diagnostics.Report
}

// Scenes returns the valid scenes of the diagnosed set, ordered by key.
func (d diagnosis) Scenes() []scene.Scene {
	out := make([]scene.Scene, len(d.Resolution.Scenes))
	for i, rs := range d.Resolution.Scenes {
		out[i] = rs.Scene
	}
	return out
}

// diagnose resolves set against the navigation tree and evaluates it against baseline.
func (c *SceneCatalog) diagnose(in diagnosisInputs, set sceneSet, baseline []scene.Scene) diagnosis {
	reg := scene.NewRegistry(set.Scenes)
	for _, q := range reg.Quarantined {
		c.logger.Debug("scene quarantined",
			zap.String("channel", string(set.Channel)),
			zap.String("scene_key", q.SceneKey),
			zap.Strings("reasons", q.Reasons))
	}

	res := resolver.Resolve(resolver.Input{
		Nodes:      in.Nodes,
		Registry:   reg,
		Exemptions: c.settings.Exemptions,
		Sources:    set.Sources,
	})
	report := diagnostics.Evaluate(diagnostics.Input{
		Scenes:         res.Scenes,
		Baseline:       baseline,
		Debt:           in.Debt,
		CriticalScenes: c.settings.CriticalScenes,
		Customizations: c.settings.Customizations,
	})
	return diagnosis{Resolution: res, Report: report}
}

func encodeSceneRecord(s scene.Scene, version string) (*secondary.SceneRecord, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode scene %s: %w", s.Key, err)
	}
	return &secondary.SceneRecord{
		Key:            s.Key,
		Route:          s.Route,
		Payload:        string(payload),
		PackageVersion: version,
	}, nil
}

func decodeSceneRecord(rec *secondary.SceneRecord) (scene.Scene, error) {
	var s scene.Scene
	if err := json.Unmarshal([]byte(rec.Payload), &s); err != nil {
		return scene.Scene{}, fmt.Errorf("failed to decode imported scene %s: %w", rec.Key, err)
	}
	return s, nil
}
