package config

import "github.com/joho/godotenv"

// LoadDotEnv overlays optional env files before the yaml config per
// APP_ENV is read. godotenv never overwrites variables that are
// already set, so precedence is process env, then .env.local, then
// .env. Returns the files that were found.
func LoadDotEnv() []string {
	var loaded []string
	for _, name := range []string{".env.local", ".env"} {
		if err := godotenv.Load(name); err == nil {
			loaded = append(loaded, name)
		}
	}
	return loaded
}
