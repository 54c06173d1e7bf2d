package plans

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Plan is an offer tier. RoleID is the id of the Telegram chat that members of the plan are admitted to.
type Plan struct {
	Name                 string  `yaml:"name"`
	Price                float64 `yaml:"price"`
	ConcurrentStreams    int     `yaml:"concurrent_streams"`
	DownloadsEnabled     bool    `yaml:"downloads_enabled"`
	Enabled4K            bool    `yaml:"4k_enabled"`
	RoleID               int64   `yaml:"role_id"`
	OnetimePriceRef      string  `yaml:"onetime_price_ref"`
	SubscriptionPriceRef string  `yaml:"subscription_price_ref"`
}

// Catalog is an immutable, validated set of plans.
type Catalog struct {
	plans  []Plan
	byName map[string]int
	byRole map[int64]int
}

type file struct {
	Plans []Plan `yaml:"plans"`
}

// Load reads the plans file (yaml, top level key "plans")
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plans file: %w", err)
	}

	var f file
	if err = yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse plans file: %w", err)
	}

	return New(f.Plans)
}

func New(plans []Plan) (*Catalog, error) {
	if len(plans) == 0 {
		return nil, errors.New("plan catalog is empty")
	}

	c := &Catalog{
		plans:  make([]Plan, len(plans)),
		byName: make(map[string]int, len(plans)),
		byRole: make(map[int64]int, len(plans)),
	}
	copy(c.plans, plans)

	for i, p := range c.plans {
		switch {
		case p.Name == "":
			return nil, fmt.Errorf("plan #%d: empty name", i)
		case p.OnetimePriceRef == "":
			return nil, fmt.Errorf("plan %q: empty onetime price ref", p.Name)
		case p.RoleID == 0:
			return nil, fmt.Errorf("plan %q: empty role id", p.Name)
		}
		if _, ok := c.byName[p.Name]; ok {
			return nil, fmt.Errorf("plan %q: duplicate name", p.Name)
		}
		if _, ok := c.byRole[p.RoleID]; ok {
			return nil, fmt.Errorf("plan %q: duplicate role id %d", p.Name, p.RoleID)
		}
		c.byName[p.Name] = i
		c.byRole[p.RoleID] = i
	}

	return c, nil
}

func (c *Catalog) ByName(name string) (Plan, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Plan{}, false
	}
	return c.plans[i], true
}

func (c *Catalog) ByRole(roleID int64) (Plan, bool) {
	i, ok := c.byRole[roleID]
	if !ok {
		return Plan{}, false
	}
	return c.plans[i], true
}

// All returns a copy of the plans in file order
func (c *Catalog) All() []Plan {
	out := make([]Plan, len(c.plans))
	copy(out, c.plans)
	return out
}
