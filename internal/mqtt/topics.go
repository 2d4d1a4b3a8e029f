package mqtt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/daemonp/econnect2mqtt/internal/types"
	"github.com/daemonp/econnect2mqtt/internal/util"
)

const commandSuffix = "command"

// Topics builds every topic under the configured prefix. Entities are
// addressed by index, which stays stable when names change.
type Topics struct {
	prefix string
}

func NewTopics(prefix string) *Topics {
	return &Topics{prefix: prefix}
}

func (t *Topics) Status() string {
	return fmt.Sprintf("%s/status", t.prefix)
}

func (t *Topics) Panel() string {
	return fmt.Sprintf("%s/panel", t.prefix)
}

func (t *Topics) Alarm() string {
	return fmt.Sprintf("%s/alarm", t.prefix)
}

func (t *Topics) AlarmCommand() string {
	return fmt.Sprintf("%s/alarm/%s", t.prefix, commandSuffix)
}

// Entity returns the state topic of a sector, input or output.
func (t *Topics) Entity(category types.Category, e types.Entity) string {
	return fmt.Sprintf("%s/%s/%d", t.prefix, segment(category), e.Index)
}

// EntityCommand returns the command topic of a sector, input or output.
func (t *Topics) EntityCommand(category types.Category, e types.Entity) string {
	return fmt.Sprintf("%s/%s/%d/%s", t.prefix, segment(category), e.Index, commandSuffix)
}

func (t *Topics) Alerts() string {
	return fmt.Sprintf("%s/alerts", t.prefix)
}

func (t *Topics) Alert(a types.Alert) string {
	return fmt.Sprintf("%s/alert/%s", t.prefix, util.Slugify(a.Name))
}

// CommandFilters lists the subscriptions that receive every command.
func (t *Topics) CommandFilters() []string {
	return []string{
		t.AlarmCommand(),
		fmt.Sprintf("%s/%s/+/%s", t.prefix, segment(types.CategorySectors), commandSuffix),
		fmt.Sprintf("%s/%s/+/%s", t.prefix, segment(types.CategoryInputs), commandSuffix),
		fmt.Sprintf("%s/%s/+/%s", t.prefix, segment(types.CategoryOutputs), commandSuffix),
	}
}

// ParseCommand maps an entity command topic back to its category and
// index.
func (t *Topics) ParseCommand(topic string) (types.Category, int, bool) {
	rest, ok := strings.CutPrefix(topic, t.prefix+"/")
	if !ok {
		return 0, 0, false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[2] != commandSuffix {
		return 0, 0, false
	}
	index, err := strconv.Atoi(parts[1])
	if err != nil || index < 0 {
		return 0, 0, false
	}
	for _, c := range []types.Category{types.CategorySectors, types.CategoryInputs, types.CategoryOutputs} {
		if segment(c) == parts[0] {
			return c, index, true
		}
	}
	return 0, 0, false
}

func segment(c types.Category) string {
	switch c {
	case types.CategorySectors:
		return "sector"
	case types.CategoryInputs:
		return "input"
	case types.CategoryOutputs:
		return "output"
	default:
		return c.String()
	}
}
