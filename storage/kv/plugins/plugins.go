// Package plugins lists the kv storage plugins
// compiled into this module.
package plugins

import (
	"sort"

	"github.com/jrife/sertree/storage/kv"
	"github.com/jrife/sertree/storage/kv/plugins/badger"
	"github.com/jrife/sertree/storage/kv/plugins/bbolt"
	"github.com/jrife/sertree/storage/kv/plugins/lmdb"
	"github.com/jrife/sertree/storage/kv/plugins/memory"
	"github.com/jrife/sertree/storage/kv/plugins/pebble"
)

// KVPluginManager lets a consumer
// retrieve the KV storage plugin
// by name
type KVPluginManager struct {
	plugins []kv.Plugin
}

// NewKVPluginManager returns a KVPluginManager
// that is loaded with all supported plugins.
func NewKVPluginManager() *KVPluginManager {
	plugins := []kv.Plugin{}

	plugins = append(plugins, bbolt.Plugins()...)
	plugins = append(plugins, pebble.Plugins()...)
	plugins = append(plugins, badger.Plugins()...)
	plugins = append(plugins, lmdb.Plugins()...)
	plugins = append(plugins, memory.Plugins()...)

	return &KVPluginManager{
		plugins: plugins,
	}
}

// Plugin returns the plugin whose name matches the given name.
// It returns nil if no such plugin is found.
func (pluginManager *KVPluginManager) Plugin(name string) kv.Plugin {
	for _, plugin := range pluginManager.plugins {
		if plugin.Name() == name {
			return plugin
		}
	}

	return nil
}

// Plugins lists all the plugins that are available
func (pluginManager *KVPluginManager) Plugins() []kv.Plugin {
	return pluginManager.plugins
}

// Names lists the names of all available plugins in ascending order
func (pluginManager *KVPluginManager) Names() []string {
	names := make([]string, 0, len(pluginManager.plugins))

	for _, plugin := range pluginManager.plugins {
		names = append(names, plugin.Name())
	}

	sort.Strings(names)

	return names
}

var defaultManager = NewKVPluginManager()

// Plugin returns the plugin whose name matches the given name.
// It returns nil if no such plugin is found.
func Plugin(name string) kv.Plugin {
	return defaultManager.Plugin(name)
}

// Plugins lists all the plugins that are available
func Plugins() []kv.Plugin {
	return defaultManager.Plugins()
}

// Names lists the names of all available plugins
func Names() []string {
	return defaultManager.Names()
}
