// Package config loads the sidrapanel configuration.
//
// Values are resolved in increasing order of precedence:
//
//	1. Default() values
//	2. A YAML file (--config, SIDRAPANEL_CONFIG, ./sidrapanel.yaml or ./configs/sidrapanel.yaml)
//	3. Environment variables, including those loaded from a local .env file
//
// Environment variables follow the pattern SIDRAPANEL_<SECTION>_<FIELD>:
//
//	SIDRAPANEL_SOURCES_SIDRA_URL=https://apisidra.ibge.gov.br/values/...
//	SIDRAPANEL_RECONCILE_AGE_MIN=38
//	SIDRAPANEL_RECONCILE_ALLOWED_STATES=Acre,Bahia
//	SIDRAPANEL_ANALYSIS_CLUSTERS=3
//	SIDRAPANEL_LOGGING_LEVEL=debug
//
// The resulting Config is validated once, including the cross-field rules
// (age_min <= age_max, year_start <= year_end), and is treated as read-only
// afterwards.
package config
