package database

import _ "embed"

// Schema is the backend-tier DDL, applied by cmd/seed for dev environments.
//
//go:embed schema.sql
var Schema string
