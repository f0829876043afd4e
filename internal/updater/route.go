package updater

import (
	"fmt"
	"regexp"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultRouteCacheSize = 64

// routeMatcher caches compiled route patterns
type routeMatcher struct {
	cache *lru.Cache[string, *regexp.Regexp]
}

func newRouteMatcher(size int) (*routeMatcher, error) {
	if size <= 0 {
		size = defaultRouteCacheSize
	}
	cache, err := lru.New[string, *regexp.Regexp](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create route pattern cache: %w", err)
	}
	return &routeMatcher{cache: cache}, nil
}

func (m *routeMatcher) compile(pattern string) (*regexp.Regexp, error) {
	if re, ok := m.cache.Get(pattern); ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid route pattern %q: %w", pattern, err)
	}
	m.cache.Add(pattern, re)
	return re, nil
}

func (m *routeMatcher) match(pattern, route string) (bool, error) {
	re, err := m.compile(pattern)
	if err != nil {
		return false, err
	}
	return re.MatchString(route), nil
}
