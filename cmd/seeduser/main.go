// cmd/seeduser/main.go: crea/actualiza el usuario administrador inicial.
// Uso: SEED_PASSWORD=... go run ./cmd/seeduser
package main

import (
	"context"
	"os"

	"autopartes/internal/config"
	"autopartes/internal/infra"
	"autopartes/internal/model"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.InMemory() {
		log.Fatal().Msg("seeduser needs a database; APP_ENV=memory has nothing to seed")
	}

	username := envOr("SEED_USERNAME", "admin")
	nombre := envOr("SEED_NOMBRE", "Administrador")
	password := os.Getenv("SEED_PASSWORD")
	if len(password) < 8 {
		log.Fatal().Msg("SEED_PASSWORD es obligatorio (mínimo 8 caracteres)")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		log.Fatal().Err(err).Msg("bcrypt error")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect error")
	}
	if err := infra.RunMigrations(db); err != nil {
		log.Fatal().Err(err).Msg("migrate error")
	}

	result := db.WithContext(context.Background()).Exec(`
		INSERT INTO usuarios (username, nombre, password_hash, rol, activo, created_at, updated_at)
		VALUES (?, ?, ?, ?, true, NOW(), NOW())
		ON CONFLICT (username) DO UPDATE
		SET password_hash = EXCLUDED.password_hash,
		    nombre = EXCLUDED.nombre,
		    rol = EXCLUDED.rol,
		    activo = true,
		    updated_at = NOW()
	`, username, nombre, string(hash), model.RolAdministrador)
	if result.Error != nil {
		log.Fatal().Err(result.Error).Msg("insert error")
	}
	log.Info().Str("username", username).Msg("usuario administrador creado/actualizado")
}
