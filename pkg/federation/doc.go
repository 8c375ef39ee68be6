// Package federation implements a bundler plugin that adds module federation
// to a single build: remote imports are resolved to external URLs, exposed
// modules are fetched from their configured location, and a
// federated-modules.json manifest echoing the configuration is emitted when
// the build ends. The plugin talks to its host only through the Builder
// interface.
package federation
