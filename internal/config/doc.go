// Package config loads the gatewayd YAML configuration.
//
// ${VAR} references are expanded from the environment before parsing, so
// the bot token normally lives in the environment or a .env file:
//
//	discord:
//	  token: ${DISCORD_TOKEN}
//	  intents: 513
package config
