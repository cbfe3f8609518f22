package profile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml"

	"fragsplit/common"
)

// Init writes a default split profile into the given directory.
func Init(dir string) error {
	path := filepath.Join(dir, common.ProfileFileName)

	if _, err := os.Stat(path); err == nil {
		return errors.New("split profile already exists")
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to create split profile: %w", err)
	}

	tpf := &tomlProfileFile{
		Version: common.FragsplitVersion,
		Split: &tomlSplit{
			OutputPath: Default().OutputPath,
		},
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create split profile: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(tpf); err != nil {
		return fmt.Errorf("failed to write split profile: %w", err)
	}

	return nil
}
