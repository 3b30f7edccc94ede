package config

import (
	"os"

	"github.com/joho/godotenv"
)

// LoadDotenv loads environment variables from a .env file before the
// config is read, so CMC_API_KEY and COINGECKO_API_KEY can live there.
//
//   - NO_DOTENV=1 skips loading entirely.
//   - ENV_FILE names the file to load instead of ./.env.
//   - DOTENV_OVERLOAD=1 lets the file win over variables already set.
//
// A missing file is not an error.
func LoadDotenv() error {
	if os.Getenv("NO_DOTENV") == "1" {
		return nil
	}

	path := ".env"
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		path = envFile
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if os.Getenv("DOTENV_OVERLOAD") == "1" {
		return godotenv.Overload(path)
	}
	return godotenv.Load(path)
}
