package app

import (
	"github.com/mkrupp/filevault/internal/infra/config"
	"github.com/mkrupp/filevault/internal/infra/database"
	"github.com/mkrupp/filevault/internal/infra/logging"
	http_ "github.com/mkrupp/filevault/internal/infra/transport/http"
	"github.com/mkrupp/filevault/internal/repo/blob"
	"github.com/mkrupp/filevault/internal/svc/authsvc"
	"github.com/mkrupp/filevault/internal/svc/filesvc"
	"github.com/mkrupp/filevault/internal/svc/imagesvc"
	"github.com/mkrupp/filevault/internal/svc/usersvc"
)

// Namespace prefixes every environment variable of the server.
const Namespace = "FILEVAULT"

// Config is the complete server configuration.
type Config struct {
	config.EnvConfig

	Log   logging.LoggerConfig      `envPrefix:"LOG_"`
	HTTP  http_.HTTPTransportConfig `envPrefix:"HTTP_"`
	Auth  authsvc.AuthConfig        `envPrefix:"AUTH_"`
	DB    database.Config           `envPrefix:"DB_"`
	Files filesvc.FileConfig        `envPrefix:"FILES_"`
	Image imagesvc.ImageConfig      `envPrefix:"IMAGE_"`
	Blob  blob.Config               `envPrefix:"BLOB_"`
	Seed  usersvc.SeedConfig        `envPrefix:"SEED_"`
}
