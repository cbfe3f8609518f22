package profile

import (
	"fmt"
	"path/filepath"

	"github.com/pelletier/go-toml"

	"fragsplit/common"
	"fragsplit/report"
	"fragsplit/split"
)

// tomlProfileFile represents the split profile file as it is encoded in TOML
type tomlProfileFile struct {
	Version string     `toml:"fragsplit-version"`
	Split   *tomlSplit `toml:"split"`
}

// tomlSplit represents the splitter configuration as it is encoded in TOML
type tomlSplit struct {
	FragmentCount   int                  `toml:"fragment-count"`
	MinFragmentSize int                  `toml:"min-fragment-size"`
	InitialSequence []*tomlSequenceEntry `toml:"initial-sequence,omitempty"`
	LogFragmentMap  bool                 `toml:"log-fragment-map"`
	DependencyGraph string               `toml:"dependency-graph,omitempty"`
	OutputPath      string               `toml:"output"`
}

// tomlSequenceEntry represents an entry of the initial load sequence as it is
// encoded in TOML
type tomlSequenceEntry struct {
	Ref string `toml:"ref"`
}

// SplitProfile is the configuration of a run of the splitter.
type SplitProfile struct {
	// The path to the profile file.  It is empty for the default profile.
	Path string

	// The total number of fragments to aim for: zero for one fragment per
	// split point.
	ExpectedFragmentCount int

	// The estimated size in bytes below which fragments are merged together:
	// zero to disable.
	MinFragmentSize int

	// The split points loaded right after the initial download, in order.
	InitialSequence []split.LoadSequenceEntry

	// Whether to display which declarations end up in which fragment.
	LogFragmentMap bool

	// The path to write the dependency graphs to.  Empty if no dependency
	// graphs should be written.
	DependencyGraphPath string

	// The directory the fragments are written to.
	OutputPath string
}

// Default returns the profile used when no profile file exists.
func Default() *SplitProfile {
	return &SplitProfile{OutputPath: "out"}
}

// Load loads and validates the split profile at path.  Relative paths in the
// profile are relative to the directory containing it.
func Load(path string) (*SplitProfile, error) {
	tree, err := toml.LoadFile(path)
	if err != nil {
		return nil, report.RaiseConfig(path, 0, 0, "%s", err)
	}

	tpf := &tomlProfileFile{}
	if err := tree.Unmarshal(tpf); err != nil {
		return nil, report.RaiseConfig(path, 0, 0, "%s", err)
	}

	if tpf.Version != "" && tpf.Version != common.FragsplitVersion {
		report.ReportWarning("version of split profile `%s` (v%s) does not match current fragsplit version (v%s)", path, tpf.Version, common.FragsplitVersion)
	}

	if tpf.Split == nil {
		return nil, report.RaiseConfig(path, 0, 0, "missing `[split]` table")
	}

	errorAt := func(key, msg string, args ...interface{}) error {
		pos := tree.GetPosition(key)
		return report.RaiseConfig(path, pos.Line, pos.Col, msg, args...)
	}

	ts := tpf.Split
	if ts.FragmentCount < 0 {
		return nil, errorAt("split.fragment-count", "fragment count must not be negative")
	}

	if ts.MinFragmentSize < 0 {
		return nil, errorAt("split.min-fragment-size", "minimum fragment size must not be negative")
	}

	if ts.OutputPath == "" {
		return nil, errorAt("split", "missing output path")
	}

	prof := &SplitProfile{
		Path:                  path,
		ExpectedFragmentCount: ts.FragmentCount,
		MinFragmentSize:       ts.MinFragmentSize,
		LogFragmentMap:        ts.LogFragmentMap,
		OutputPath:            resolvePath(path, ts.OutputPath),
	}

	if ts.DependencyGraph != "" {
		prof.DependencyGraphPath = resolvePath(path, ts.DependencyGraph)
	}

	// go-toml only records the positions of the entries in the tree
	entryTrees, _ := tree.Get("split.initial-sequence").([]*toml.Tree)
	for i, entry := range ts.InitialSequence {
		lse := split.LoadSequenceEntry{Ref: entry.Ref, Path: path}

		if i < len(entryTrees) {
			pos := entryTrees[i].GetPosition("ref")
			if pos.Invalid() {
				pos = entryTrees[i].Position()
			}

			lse.Line, lse.Col = pos.Line, pos.Col
		}

		if entry.Ref == "" {
			return nil, report.RaiseConfig(path, lse.Line, lse.Col, "initial load sequence entry %d has no `ref`", i+1)
		}

		prof.InitialSequence = append(prof.InitialSequence, lse)
	}

	return prof, nil
}

// resolvePath resolves a path relative to the directory of the profile.
func resolvePath(profilePath, path string) string {
	if filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(filepath.Dir(profilePath), path)
}

// String summarizes the profile for display.
func (sp *SplitProfile) String() string {
	return fmt.Sprintf(
		"fragment-count=%d min-fragment-size=%d initial-sequence=%d output=%s",
		sp.ExpectedFragmentCount,
		sp.MinFragmentSize,
		len(sp.InitialSequence),
		sp.OutputPath,
	)
}
