// Package config manages the Airflow server list and runtime settings.
//
// # Server file
//
// Servers live in a TOML file, by default ~/.flowrs. The location can be
// overridden with FLOWRS_CONFIG_PATH; ~/.config/flowrs/config.toml is used
// when it exists.
//
//	active_server = "prod"
//	managed_services = ["conveyor"]
//
//	[[servers]]
//	name = "prod"
//	endpoint = "https://airflow.example.com"
//	version = "v2"
//	timeout = "30s"
//
//	[servers.auth.basic]
//	username = "admin"
//	password = "${AIRFLOW_PASSWORD}"
//
//	[[servers]]
//	name = "dev"
//	endpoint = "http://localhost:8080"
//
//	[servers.auth.token]
//	cmd = "gcloud auth print-access-token"
//
// String fields may reference environment variables as ${VAR}. References
// are expanded when a client is built and kept verbatim on Save, which
// writes the file with mode 0600.
//
// # Managed services
//
// Enabled managed services contribute servers at startup through a
// Discoverer. Discovered servers are listed after configured ones and are
// never written to the file.
//
// # Runtime settings
//
// Settings such as tick_interval and request_timeout come from command
// line flags, FLOWRS_* environment variables and built-in defaults.
package config
