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

package modcacheconfig

import "strings"

// Well-known property names recognized at initialize(session) time, per
// spec §6.
const (
	PropertyEnabled                 = "remote.cache.enabled"
	PropertySaveEnabled             = "remote.cache.save.enabled"
	PropertySaveFinal               = "remote.cache.save.final"
	PropertyFailFast                = "remote.cache.failFast"
	PropertyBaselineURL             = "remote.cache.baselineUrl"
	PropertyLazyRestore             = "remote.cache.lazyRestore"
	PropertyRestoreGeneratedSources = "remote.cache.restoreGeneratedSources"
	PropertyConfigPath              = "remote.cache.configPath"
)

// Properties is the string->string property bag passed by the build
// driver at initialize time (command-line -D properties, environment,
// etc).
type Properties map[string]string

func (p Properties) boolean(name string, defaultValue bool) bool {
	value, ok := p[name]
	if !ok {
		return defaultValue
	}
	return strings.EqualFold(value, "true")
}

// ApplyProperties overlays the recognized remote.cache.* properties onto
// model, per spec §6. Properties always take precedence over whatever
// was parsed from the XML document.
func ApplyProperties(model *ConfigModel, props Properties) {
	model.Enabled = props.boolean(PropertyEnabled, model.Enabled)
	if _, ok := props[PropertySaveEnabled]; ok {
		model.Configuration.Local.SaveEnabled = props.boolean(PropertySaveEnabled, model.Configuration.Local.SaveEnabled)
	}
	model.Configuration.SaveFinal = props.boolean(PropertySaveFinal, model.Configuration.SaveFinal)
	model.Configuration.FailFast = props.boolean(PropertyFailFast, model.Configuration.FailFast)
	if url, ok := props[PropertyBaselineURL]; ok {
		model.Configuration.BaselineURL = url
	}
	model.Configuration.LazyRestore = props.boolean(PropertyLazyRestore, model.Configuration.LazyRestore)
	model.Configuration.RestoreGeneratedSources = props.boolean(PropertyRestoreGeneratedSources, model.Configuration.RestoreGeneratedSources)
}

// ConfigPath returns the configured override for the configuration file
// location, or "" when the driver should use the default
// "<multimoduleRoot>/.mvn/maven-cache-config.xml".
func (p Properties) ConfigPath() string {
	return p[PropertyConfigPath]
}
