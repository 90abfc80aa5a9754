// Package config defines the server configuration structure.
//
// Configuration is layered: built-in defaults, then the optional YAML
// config file, then DOCMESH_-prefixed environment variables, then
// command-line flags. Later layers win.
package config
