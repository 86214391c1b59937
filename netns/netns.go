//go:build linux
// +build linux

package netns

import (
	"github.com/pkg/errors"
	"github.com/vishvananda/netns"
)

type Netns struct{}

func New() *Netns {
	return &Netns{}
}

func (f *Netns) Get() (int, error) {
	nsHandle, err := netns.Get()
	return int(nsHandle), errors.Wrap(err, "netns impl")
}

func (f *Netns) GetFromName(name string) (int, error) {
	nsHandle, err := netns.GetFromName(name)
	return int(nsHandle), errors.Wrap(err, "netns impl")
}

func (f *Netns) GetFromPath(path string) (int, error) {
	nsHandle, err := netns.GetFromPath(path)
	return int(nsHandle), errors.Wrap(err, "netns impl")
}

func (f *Netns) Set(fileDescriptor int) error {
	return errors.Wrap(netns.Set(netns.NsHandle(fileDescriptor)), "netns impl")
}

func (f *Netns) NewNamed(name string) (int, error) {
	nsHandle, err := netns.NewNamed(name)
	return int(nsHandle), errors.Wrap(err, "netns impl")
}

func (f *Netns) DeleteNamed(name string) error {
	return errors.Wrap(netns.DeleteNamed(name), "netns impl")
}

// Enter switches the calling OS thread into the network namespace at
// path and returns a restore function that switches back to whatever
// namespace the thread was in beforehand. Callers must serialize entry
// (no nested scopes) and must call the returned func before the thread
// is reused for anything else.
func (f *Netns) Enter(path string) (func() error, error) {
	current, err := f.Get()
	if err != nil {
		return nil, errors.Wrap(err, "saving current network namespace")
	}
	target, err := f.GetFromPath(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening network namespace %s", path)
	}
	if err := f.Set(target); err != nil {
		return nil, errors.Wrapf(err, "entering network namespace %s", path)
	}
	return func() error {
		return f.Set(current)
	}, nil
}
