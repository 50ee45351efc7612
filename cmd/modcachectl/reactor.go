// Copyright 2026 The Modcache Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// reactorDescriptor is the top-level YAML document naming the modules
// of a simulated multi-module build, already in dependency order:
// a module never lists an upstream that appears later in Modules.
type reactorDescriptor struct {
	MultiModuleRoot string             `yaml:"multiModuleRoot"`
	Modules         []moduleDescriptor `yaml:"modules"`
}

type moduleDescriptor struct {
	Group     string               `yaml:"group"`
	Artifact  string               `yaml:"artifact"`
	Version   string               `yaml:"version"`
	Dir       string               `yaml:"dir"`
	Upstreams []string             `yaml:"upstreams"`
	Steps     []stepDescriptor     `yaml:"steps"`
	Artifacts []artifactDescriptor `yaml:"artifacts"`
}

type pluginDescriptor struct {
	Group    string `yaml:"group"`
	Artifact string `yaml:"artifact"`
	Version  string `yaml:"version"`
}

type stepDescriptor struct {
	Plugin      pluginDescriptor  `yaml:"plugin"`
	ExecutionID string            `yaml:"executionId"`
	Goal        string            `yaml:"goal"`
	Properties  map[string]string `yaml:"properties"`
}

type artifactDescriptor struct {
	Filename   string  `yaml:"filename"`
	Extension  string  `yaml:"extension"`
	Classifier *string `yaml:"classifier,omitempty"`
	// Content seeds the artifact's simulated build output; a MISS build
	// writes it verbatim as the artifact's bytes.
	Content string `yaml:"content"`
}

func loadReactor(path string) (*reactorDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading reactor descriptor: %w", err)
	}
	var descriptor reactorDescriptor
	if err := yaml.Unmarshal(data, &descriptor); err != nil {
		return nil, fmt.Errorf("parsing reactor descriptor: %w", err)
	}
	return &descriptor, nil
}

// moduleKey is the "group:artifact" identifier used to resolve upstream
// references within a reactorDescriptor.
func moduleKey(group, artifact string) string {
	return group + ":" + artifact
}
