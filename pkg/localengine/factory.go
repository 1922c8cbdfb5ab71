package localengine

import opticks "github.com/goliatone/go-opticks"

// Factory builds Engines for opticks.Resolver.Initialize.
type Factory struct {
	Options []Option
}

var _ opticks.EngineFactory = Factory{}

// NewFactory returns a Factory applying opts to every engine it builds.
func NewFactory(opts ...Option) Factory {
	return Factory{Options: opts}
}

// NewEngine implements opticks.EngineFactory.
func (f Factory) NewEngine(definition opticks.Definition, dispatcher opticks.EventDispatcher) (opticks.Engine, error) {
	engine, err := New(definition, dispatcher, f.Options...)
	if err != nil {
		return nil, err
	}
	return engine, nil
}
