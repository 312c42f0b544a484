package loaders

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/anima-rt/engine/core"
	"github.com/spaghettifunk/anima-rt/engine/renderer/metadata"
)

// SceneLoader decodes .rtscene files into a metadata.RayTracingSceneConfig.
// Unknown keys are rejected so typos in a scene do not go unnoticed.
type SceneLoader struct{}

func (sl *SceneLoader) Load(path string, params interface{}) (*metadata.Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg, err := DecodeScene(data)
	if err != nil {
		err = fmt.Errorf("failed to decode scene '%s': %w", path, err)
		core.LogError("%s", err.Error())
		return nil, err
	}

	return &metadata.Resource{
		Name:     strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		FullPath: path,
		DataSize: uint64(len(data)),
		Data:     cfg,
	}, nil
}

func (sl *SceneLoader) Unload(r *metadata.Resource) error {
	r.Data = nil
	r.DataSize = 0
	return nil
}

// DecodeScene parses a TOML scene description.
func DecodeScene(data []byte) (*metadata.RayTracingSceneConfig, error) {
	cfg := &metadata.RayTracingSceneConfig{}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("%w: line %d column %d: %s", core.ErrInvalidDescription, row, col, derr.Error())
		}
		var serr *toml.StrictMissingError
		if errors.As(err, &serr) {
			return nil, fmt.Errorf("%w: %s", core.ErrInvalidDescription, serr.String())
		}
		return nil, err
	}
	return cfg, nil
}

// DecodeRecordData turns the hex payload of a shader record into bytes. An optional
// 0x prefix is accepted and whitespace or underscores are ignored.
func DecodeRecordData(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', '_':
			return -1
		}
		return r
	}, s)
	if s == "" {
		return nil, nil
	}
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: shader record data: %w", core.ErrInvalidDescription, err)
	}
	return data, nil
}
