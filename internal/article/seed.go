package article

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultSeedRows is the number of articles seeded by default.
const DefaultSeedRows = 100

// SeedStatuses are drawn uniformly; "incorrect" is what fix-bad-statuses repairs.
var SeedStatuses = []string{StatusLive, StatusDead, "incorrect"}

var seedWords = []string{
	"alpha", "harbor", "copper", "lantern", "meadow", "signal", "orbit", "quartz",
	"river", "summit", "timber", "violet", "willow", "ember", "glacier", "canyon",
	"falcon", "ledger", "mosaic", "nectar", "pioneer", "rocket", "saddle", "tundra",
}

// Seed inserts n random articles and returns them.
func Seed(ctx context.Context, w Writer, n int, rnd *rand.Rand, now time.Time) ([]Article, error) {
	out := make([]Article, 0, n)
	for i := 0; i < n; i++ {
		a := randomArticle(rnd, now)
		if err := w.Insert(ctx, TableName, a.Fields()); err != nil {
			return out, fmt.Errorf("seed article %d: %w", i, err)
		}
		out = append(out, a)
	}
	return out, nil
}

func randomArticle(rnd *rand.Rand, now time.Time) Article {
	words := make([]string, 5)
	for i := range words {
		words[i] = pick(rnd, seedWords)
	}
	heading := strings.ToUpper(words[0][:1]) + words[0][1:] + " " + strings.Join(words[1:], " ") + "."
	id := uuid.New()

	return Article{
		ID:              id.String(),
		Slug:            strings.Join(words, "-") + "-" + id.String()[:8],
		Kind:            Kind,
		Heading:         heading,
		Topics:          []string{pick(rnd, seedWords), pick(rnd, seedWords)},
		PublicationDate: now.Add(-time.Duration(rnd.Int64N(int64(365 * 24 * time.Hour)))).UTC().Truncate(time.Second),
		Status:          pick(rnd, SeedStatuses),
	}
}

func pick(rnd *rand.Rand, from []string) string {
	return from[rnd.IntN(len(from))]
}
