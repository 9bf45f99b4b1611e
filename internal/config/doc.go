// Package config holds the command line configuration for pagebeacon
// and loads the optional .pagebeacon YAML file.
//
// Values are resolved in this order, later winning: built-in defaults,
// the configuration file, command line flags.
package config
