package config

import "embed"

const providersSchemaFile = "schema/providers.schema.json"

//go:embed schema/*.json
var configSchemaFS embed.FS
