package main

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/loykin/dataupgrader/cmd/dataupgrader/config"
	"github.com/loykin/dataupgrader/internal/article"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert random test articles, some with statuses the upgrade repairs",
	RunE: func(cmd *cobra.Command, args []string) error {
		v := viper.GetViper()
		doc, err := loadConfig(v)
		if err != nil {
			return err
		}
		return seed(cmd.Context(), doc, v.GetInt("rows"), v.GetUint64("seed"), cmd.OutOrStdout())
	},
}

// seed inserts rows articles. seedValue 0 picks a time-based seed.
func seed(ctx context.Context, doc *config.ConfigDoc, rows int, seedValue uint64, out io.Writer) error {
	if rows <= 0 {
		return fmt.Errorf("--rows must be positive, got %d", rows)
	}
	if seedValue == 0 {
		seedValue = uint64(time.Now().UnixNano())
	}

	st, err := openStore(ctx, doc)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	rnd := rand.New(rand.NewPCG(seedValue, seedValue))
	seeded, err := article.Seed(ctx, st, rows, rnd, time.Now())
	if err != nil {
		return err
	}
	counts := map[string]int{}
	for _, a := range seeded {
		counts[a.Status]++
	}
	_, err = fmt.Fprintf(out, "seeded %d articles (live=%d dead=%d incorrect=%d, seed=%d)\n",
		len(seeded), counts[article.StatusLive], counts[article.StatusDead],
		len(seeded)-counts[article.StatusLive]-counts[article.StatusDead], seedValue)
	return err
}
