package status

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/loykin/dataupgrader/internal/constants"
	"github.com/loykin/dataupgrader/internal/upgrade"
	"github.com/tidwall/gjson"
)

// ErrInvalidBody is returned when a health-check body is not the expected JSON.
var ErrInvalidBody = errors.New("invalid health-check body")

// TableInfo is the progress of one managed table.
type TableInfo struct {
	Name              string
	RemainingUpgrades []string
	CompletedUpgrades []string
	RemainingCleanups []string
	DoneCleanups      []string
}

// Info aggregates runner progress: what is running now and per-table lists.
type Info struct {
	Uptime  time.Duration
	Phase   string
	Table   string
	Upgrade string
	Tables  []TableInfo
}

// FromSnapshot builds Info from an in-process runner snapshot.
func FromSnapshot(s upgrade.Snapshot, uptime time.Duration) Info {
	info := Info{
		Uptime:  uptime,
		Phase:   string(s.CurrentlyRunningUpgrade.Type),
		Table:   s.CurrentlyRunningUpgrade.TableName,
		Upgrade: s.CurrentlyRunningUpgrade.UpgradeName,
	}
	for _, name := range tableNames(s.RemainingUpgrades, s.CompletedUpgrades, s.RemainingCleanups, s.DoneCleanups) {
		info.Tables = append(info.Tables, TableInfo{
			Name:              name,
			RemainingUpgrades: s.RemainingUpgrades[name],
			CompletedUpgrades: s.CompletedUpgrades[name],
			RemainingCleanups: s.RemainingCleanups[name],
			DoneCleanups:      s.DoneCleanups[name],
		})
	}
	return info
}

// Parse reads a /health-check body: {"uptime": seconds, "dataUpgrades": snapshot}.
func Parse(body []byte) (Info, error) {
	if !gjson.ValidBytes(body) {
		return Info{}, fmt.Errorf("%w: not JSON", ErrInvalidBody)
	}
	root := gjson.ParseBytes(body)
	state := root.Get("dataUpgrades")
	if !state.IsObject() {
		return Info{}, fmt.Errorf("%w: missing dataUpgrades", ErrInvalidBody)
	}

	info := Info{
		Uptime:  time.Duration(root.Get("uptime").Float() * float64(time.Second)),
		Phase:   state.Get("currentlyRunningUpgrade.type").String(),
		Table:   state.Get("currentlyRunningUpgrade.tableName").String(),
		Upgrade: state.Get("currentlyRunningUpgrade.upgradeName").String(),
	}
	lists := map[string]map[string][]string{}
	for _, key := range []string{"remainingUpgrades", "completedUpgrades", "remainingCleanups", "doneCleanups"} {
		lists[key] = map[string][]string{}
		state.Get(key).ForEach(func(table, names gjson.Result) bool {
			out := []string{}
			for _, n := range names.Array() {
				out = append(out, n.String())
			}
			lists[key][table.String()] = out
			return true
		})
	}
	for _, name := range tableNames(lists["remainingUpgrades"], lists["completedUpgrades"], lists["remainingCleanups"], lists["doneCleanups"]) {
		info.Tables = append(info.Tables, TableInfo{
			Name:              name,
			RemainingUpgrades: lists["remainingUpgrades"][name],
			CompletedUpgrades: lists["completedUpgrades"][name],
			RemainingCleanups: lists["remainingCleanups"][name],
			DoneCleanups:      lists["doneCleanups"][name],
		})
	}
	return info, nil
}

// Fetch queries a running server's health check through client.
func Fetch(ctx context.Context, client *resty.Client) (Info, error) {
	resp, err := client.R().SetContext(ctx).Get(constants.HealthCheckPath)
	if err != nil {
		return Info{}, fmt.Errorf("health check request: %w", err)
	}
	if resp.IsError() {
		return Info{}, fmt.Errorf("health check returned %d", resp.StatusCode())
	}
	return Parse(resp.Body())
}

// Done reports whether the runner has finished every upgrade and cleanup.
func (i Info) Done() bool {
	return i.Phase == string(upgrade.PhaseDone)
}

// FormatHuman returns a human-friendly multiline string for CLI output.
// tables=false prints only the current activity.
func (i Info) FormatHuman(tables bool) string {
	var b strings.Builder
	phase := i.Phase
	if phase == "" {
		phase = "not started"
	}
	fmt.Fprintf(&b, "phase: %s", phase)
	if i.Table != "" {
		fmt.Fprintf(&b, " (%s", i.Table)
		if i.Upgrade != "" {
			fmt.Fprintf(&b, "/%s", i.Upgrade)
		}
		b.WriteString(")")
	}
	fmt.Fprintf(&b, "\nuptime: %s\n", i.Uptime.Round(time.Second))
	if !tables {
		return b.String()
	}
	for _, t := range i.Tables {
		fmt.Fprintf(&b, "%s:\n", t.Name)
		fmt.Fprintf(&b, "  upgrades remaining: %v\n", names(t.RemainingUpgrades))
		fmt.Fprintf(&b, "  upgrades completed: %v\n", names(t.CompletedUpgrades))
		fmt.Fprintf(&b, "  cleanups remaining: %v\n", names(t.RemainingCleanups))
		fmt.Fprintf(&b, "  cleanups done: %v\n", names(t.DoneCleanups))
	}
	return b.String()
}

func names(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}

func tableNames(maps ...map[string][]string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range maps {
		for k := range m {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	sort.Strings(out)
	return out
}
