package opticks

// decisionCache memoizes engine decisions for the active identity and
// attribute context. The boolean and variation tables are independent.
type decisionCache struct {
	booleans   map[string]Value
	variations map[string]Value
}

func newDecisionCache() decisionCache {
	return decisionCache{
		booleans:   map[string]Value{},
		variations: map[string]Value{},
	}
}

func (c *decisionCache) table(kind Kind) map[string]Value {
	if kind == KindBool {
		if c.booleans == nil {
			c.booleans = map[string]Value{}
		}
		return c.booleans
	}
	if c.variations == nil {
		c.variations = map[string]Value{}
	}
	return c.variations
}

func (c *decisionCache) get(kind Kind, toggleID string) (Value, bool) {
	value, ok := c.table(kind)[toggleID]
	return value, ok
}

func (c *decisionCache) set(kind Kind, toggleID string, value Value) {
	c.table(kind)[toggleID] = value
}

// clear empties both tables. Callers hold the resolver lock.
func (c *decisionCache) clear() {
	c.booleans = map[string]Value{}
	c.variations = map[string]Value{}
}
