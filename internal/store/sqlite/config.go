package sqlite

import (
	"fmt"

	"github.com/loykin/dataupgrader/internal/constants"
	"github.com/loykin/dataupgrader/internal/util"
)

type Config struct {
	Path string `mapstructure:"path" yaml:"path"`
	DSN  string `mapstructure:"dsn" yaml:"dsn"`
}

func (c *Config) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"path": util.TrimWithDefault(c.Path, constants.DefaultSQLitePath),
	}
	if dsn, ok := util.TrimEmptyCheck(c.DSN); ok {
		m["dsn"] = dsn
	}
	return m
}

// pathDSN builds a modernc DSN with the busy timeout and foreign keys pragmas.
func pathDSN(path string) string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)",
		path, constants.DefaultSQLiteBusyTimeoutMS)
}
