package article

import (
	"github.com/loykin/dataupgrader/internal/common"
	"github.com/loykin/dataupgrader/internal/upgrade"
)

// Services is handed to every article upgrade.
type Services struct {
	Logger *common.Logger
}

func (s Services) logger() *common.Logger {
	if s.Logger == nil {
		return common.GetLogger()
	}
	return s.Logger
}

// FixBadStatuses forces any status other than live or dead to dead.
var FixBadStatuses = upgrade.Upgrade[Services]{
	Name: "fix-bad-statuses",
	Apply: func(row upgrade.Row, svc Services) (upgrade.Updates, error) {
		status, _ := row.Get("status").(string)
		if status == StatusLive || status == StatusDead {
			return nil, nil
		}
		svc.logger().Info("fixing bad status", "id", row.ID, "old", status, "new", StatusDead)
		return upgrade.Updates{"status": StatusDead}, nil
	},
}

// Upgrades lists the active article upgrades in run order.
func Upgrades() []upgrade.Upgrade[Services] {
	return []upgrade.Upgrade[Services]{FixBadStatuses}
}

// Table is the runner definition for the article table. cleanups names
// retired upgrades whose markers should be stripped.
func Table(cleanups []string) upgrade.Table[Services] {
	return upgrade.Table[Services]{
		Name:     TableName,
		Upgrades: Upgrades(),
		Cleanups: cleanups,
	}
}

// Effective decodes row after applying the sync article upgrades it lacks.
func Effective(row upgrade.Row, svc Services) (Article, error) {
	e := upgrade.NewEffective[Services](row)
	if err := e.ApplyUpgrades(svc, Upgrades()...); err != nil {
		return Article{}, err
	}
	return FromRow(e.Current())
}
