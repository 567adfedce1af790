package config

const (
	EnvPrefix = "AURELLE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "AURELLE_DB_DSN"
	EnvDBHost = "AURELLE_DB_HOST"
	EnvDBUser = "AURELLE_DB_USER"
	EnvDBName = "AURELLE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
