package rules

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// LRUProgramCache is a size bounded ProgramCache for hosts that load many
// short lived definitions.
type LRUProgramCache struct {
	programs *lru.Cache[string, any]
}

// NewLRUProgramCache keeps at most size compiled programs.
func NewLRUProgramCache(size int) (*LRUProgramCache, error) {
	programs, err := lru.New[string, any](size)
	if err != nil {
		return nil, err
	}
	return &LRUProgramCache{programs: programs}, nil
}

func (c *LRUProgramCache) Get(key string) (any, bool) {
	return c.programs.Get(key)
}

func (c *LRUProgramCache) Set(key string, value any) {
	c.programs.Add(key, value)
}

// Len reports how many programs are cached.
func (c *LRUProgramCache) Len() int {
	return c.programs.Len()
}
