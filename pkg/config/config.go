// Copyright 2017 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package config loads JSON and YAML configuration files into structs.
// JSON files may contain comment lines starting with #. Unknown fields are rejected in both formats.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/lkd/pkg/osutil"
	"gopkg.in/yaml.v3"
)

type Format int

const (
	JSON Format = iota
	YAML
)

// FormatOf guesses the format from the file extension.
func FormatOf(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return YAML
	default:
		return JSON
	}
}

func LoadFile(filename string, cfg any) error {
	if filename == "" {
		return fmt.Errorf("no config file specified")
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return LoadData(data, FormatOf(filename), cfg)
}

func LoadData(data []byte, format Format, cfg any) error {
	if format == YAML {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
		return nil
	}
	// Remove comment lines starting with #.
	data = commentRe.ReplaceAll(data, nil)
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

var commentRe = regexp.MustCompile(`(^|\n)\s*#[^\n]*`)

func SaveFile(filename string, cfg any) error {
	var data []byte
	var err error
	if FormatOf(filename) == YAML {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "\t")
	}
	if err != nil {
		return err
	}
	return osutil.WriteFile(filename, data)
}
