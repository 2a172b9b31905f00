//go:build !linux

package sandbox

import "errors"

type runCgroup struct {
	path string
}

func newRunCgroup(string, int, int64) (*runCgroup, error) {
	return nil, errors.New("cgroups require linux")
}

func (c *runCgroup) add(int) error   { return nil }
func (c *runCgroup) kill()           {}
func (c *runCgroup) oomKilled() bool { return false }
func (c *runCgroup) remove() error   { return nil }
