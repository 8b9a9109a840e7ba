package services

import (
	"fmt"

	"github.com/ekaya-inc/ekaya-datatools/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datatools/pkg/config"
	"github.com/ekaya-inc/ekaya-datatools/pkg/models"
)

// tableSide names the request fields describing one side of an operation.
type tableSide struct {
	tableField string
	envField   string
	ptField    string

	table     string
	env       string
	sharedEnv string
	partition string
}

// resolveTableRef validates one side and records every failure on v.
// The environment resolves as side value, then shared value, then the configured default.
func resolveTableRef(v *apperrors.ValidationError, cfg config.DataToolsConfig, side tableSide) models.TableRef {
	env := side.env
	if env == "" {
		env = side.sharedEnv
	}
	if env == "" {
		env = cfg.DefaultEnvironment
	}
	if !cfg.IsAllowedEnvironment(env) {
		v.Add(side.envField, fmt.Sprintf("environment %q is not allowed", env))
	}

	switch {
	case side.table == "":
		v.Add(side.tableField, "is required")
	case !models.IsValidIdentifier(side.table):
		v.Add(side.tableField, "must be a valid identifier")
	}

	if side.partition != "" && !models.IsValidPartitionToken(side.partition) {
		v.Add(side.ptField, "must be 8 (YYYYMMDD) or 10 (YYYYMMDDHH) digits")
	}

	return models.TableRef{Environment: env, Table: side.table, Partition: side.partition}
}
