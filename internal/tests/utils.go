package tests

import (
	"os"

	"github.com/meridian-fi/vaultsim/internal/config"
)

func GetConfig() *config.Config {
	return config.NewConfig()
}

func ReplaceEnv(newValues map[string]string, previousValues *map[string]string) {
	for k, v := range newValues {
		(*previousValues)[k] = os.Getenv(k)
		os.Setenv(k, v)
	}
}

func RestoreEnv(previousValues map[string]string) {
	for k, v := range previousValues {
		os.Setenv(k, v)
	}
}
