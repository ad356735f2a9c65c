// Package config defines the gateway configuration snapshot and loads it
// from YAML.
//
// Loading substitutes ${VAR} and ${VAR:-default} from the environment ($$
// is a literal dollar), applies defaults, resolves vault: secret
// references and validates the result:
//
//	cfg, err := config.LoadConfig("avamcp.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// A loaded Config is never mutated. The Watcher reloads the file on change
// and hands each valid new snapshot to a callback.
package config
