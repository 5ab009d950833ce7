// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

// Package config provides process-wide runtime configuration for the FOS
// engine, loaded from the environment.
package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config provides the system configuration.
type Config struct {
	Debug bool `envconfig:"DEBUG"`
	Trace bool `envconfig:"TRACE"`

	// SchemaPath points at the canonical JSON schema document (§4.1).
	SchemaPath string `envconfig:"FOS_SCHEMA_PATH" default:"schema.json"`

	// PluginDir is walked during Phase-2 discovery (§4.6) for user API plugins.
	PluginDir string `envconfig:"FOS_PLUGIN_DIR" default:"plugins/apis"`

	// ScriptsDir is the base directory `include` targets are resolved
	// against, both for `fos run` and for scripts submitted over HTTP.
	ScriptsDir string `envconfig:"FOS_SCRIPTS_DIR" default:"scripts"`

	// LogDir, when set, persists per-run and engine log lines as
	// newline-delimited JSON files under this directory instead of
	// writing them to stdout.
	LogDir string `envconfig:"FOS_LOG_DIR"`

	// LogService, when set, streams per-run and engine log lines to a
	// remote log-service endpoint instead of stdout or LogDir. Takes
	// precedence over LogDir.
	LogService struct {
		Endpoint  string `envconfig:"FOS_LOG_SERVICE_ENDPOINT"`
		Token     string `envconfig:"FOS_LOG_SERVICE_TOKEN"`
		AccountID string `envconfig:"FOS_LOG_SERVICE_ACCOUNT_ID"`
	}

	// DiscoveryTimeout bounds the Phase-2 plugin scan so a pathological
	// plugin directory cannot hang the process (§4.1).
	DiscoveryTimeout time.Duration `envconfig:"FOS_DISCOVERY_TIMEOUT" default:"5s"`

	// DiscoveryMaxDepth bounds how deep the plugin-directory walk descends.
	DiscoveryMaxDepth int `envconfig:"FOS_DISCOVERY_MAX_DEPTH" default:"8"`

	// Sandbox holds defaults for exec_code (§4.9).
	Sandbox struct {
		Timeout      time.Duration `envconfig:"FOS_SANDBOX_TIMEOUT" default:"30s"`
		WorkspaceDir string        `envconfig:"FOS_SANDBOX_WORKSPACE" default:"/tmp/fos-workspace"`
		PythonBin    string        `envconfig:"FOS_SANDBOX_PYTHON" default:"python3"`
		BashBin      string        `envconfig:"FOS_SANDBOX_BASH" default:"/bin/bash"`
	}

	Server struct {
		Bind       string `envconfig:"HTTPS_BIND" default:":3000"`
		CertFile   string `envconfig:"SERVER_CERT_FILE" default:"/tmp/certs/server-cert.pem"`
		KeyFile    string `envconfig:"SERVER_KEY_FILE" default:"/tmp/certs/server-key.pem"`
		CACertFile string `envconfig:"CLIENT_CERT_FILE" default:"/tmp/certs/ca-cert.pem"`
		Insecure   bool   `envconfig:"SERVER_INSECURE" default:"false"`
	}
}

// Load loads the configuration from the environment.
func Load() (Config, error) {
	cfg := Config{}
	err := envconfig.Process("", &cfg)
	return cfg, err
}
