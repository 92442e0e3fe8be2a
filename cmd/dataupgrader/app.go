package main

import (
	"context"
	"fmt"

	"github.com/loykin/dataupgrader/cmd/dataupgrader/config"
	"github.com/loykin/dataupgrader/internal/article"
	"github.com/loykin/dataupgrader/internal/common"
	"github.com/loykin/dataupgrader/internal/metrics"
	"github.com/loykin/dataupgrader/internal/store"
	"github.com/loykin/dataupgrader/internal/upgrade"
	"github.com/spf13/viper"
)

// loadConfig reads the optional config file, applies flag and env
// overrides, and installs the configured logger.
func loadConfig(v *viper.Viper) (*config.ConfigDoc, error) {
	doc := &config.ConfigDoc{}
	if err := doc.LoadOptional(v.GetString("config")); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	doc.ApplyOverrides(v)
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	if err := doc.SetupLogging(); err != nil {
		return nil, err
	}
	return doc, nil
}

// openStore connects the configured store and brings its schema up to date.
func openStore(ctx context.Context, doc *config.ConfigDoc) (store.Connector, error) {
	st, err := store.Open(ctx, doc.StoreConfig())
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx, st); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return st, nil
}

func newRunner(doc *config.ConfigDoc, enabled func() bool, m *metrics.Collector, extra ...upgrade.Option) (*upgrade.Runner[article.Services], error) {
	opts, err := doc.RunnerOptions(enabled, m)
	if err != nil {
		return nil, err
	}
	opts = append(opts, extra...)
	tables := []upgrade.Table[article.Services]{
		article.Table(doc.Cleanups(article.TableName)),
	}
	return upgrade.NewRunner(tables, opts...), nil
}

func services() article.Services {
	return article.Services{Logger: common.GetLogger().WithComponent("article")}
}
