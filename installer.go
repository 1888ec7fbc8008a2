package crann

import (
	"fmt"
	"reflect"

	"go.uber.org/zap"
)

// Installer is a declarative configuration module. Install registers
// related bindings and must not resolve anything; use BootableInstaller for
// that.
//
// Example:
//
//	type LoggingInstaller struct{}
//
//	func (LoggingInstaller) Install(c *crann.Container) error {
//	    return crann.Register[Logger](c).
//	        ToImplementation(reflect.TypeFor[*ConsoleLogger]()).
//	        AsSingleton()
//	}
type Installer interface {
	Install(c *Container) error
}

// InstallerFunc adapts a function to the Installer interface.
type InstallerFunc func(c *Container) error

// Install calls f(c).
func (f InstallerFunc) Install(c *Container) error {
	return f(c)
}

// BootableInstaller is an optional interface for installers that need a
// boot phase. Boot runs after every installer has been installed, so it may
// resolve anything.
type BootableInstaller interface {
	Installer
	Boot(c *Container) error
}

// ConditionalInstaller is an optional interface for installers that decide
// at install time whether to register anything.
type ConditionalInstaller interface {
	Installer
	ShouldInstall(c *Container) bool
}

// installerEntry tracks an installed installer.
type installerEntry struct {
	installer Installer
	booted    bool
}

// Install runs installers against c in order. An installer whose concrete
// type was already installed in c is skipped (InstallerFunc values are never
// deduplicated). Installation stops at the first failing installer.
//
// Example:
//
//	if err := c.Install(&LoggingInstaller{}, &DatabaseInstaller{}); err != nil {
//	    log.Fatal(err)
//	}
//	if err := c.Boot(); err != nil {
//	    log.Fatal(err)
//	}
func (c *Container) Install(installers ...Installer) error {
	for _, installer := range installers {
		if err := c.install(installer); err != nil {
			return err
		}
	}
	return nil
}

func (c *Container) install(installer Installer) error {
	if installer == nil {
		return fmt.Errorf("installer cannot be nil")
	}
	if c.core.isDisposed() {
		return ErrDisposed
	}

	if conditional, ok := installer.(ConditionalInstaller); ok {
		if !conditional.ShouldInstall(c) {
			c.core.logger.Debug("installer skipped", zap.String("installer", fmt.Sprintf("%T", installer)))
			return nil
		}
	}

	installerType := reflect.TypeOf(installer)
	_, isFunc := installer.(InstallerFunc)

	c.core.mu.Lock()
	if !isFunc {
		for _, entry := range c.core.installers {
			if reflect.TypeOf(entry.installer) == installerType {
				c.core.mu.Unlock()
				return nil
			}
		}
	}
	c.core.mu.Unlock()

	if err := installer.Install(c); err != nil {
		return fmt.Errorf("installer %T failed: %w", installer, err)
	}

	c.core.mu.Lock()
	c.core.installers = append(c.core.installers, &installerEntry{installer: installer})
	c.core.mu.Unlock()

	c.core.logger.Debug("installer installed", zap.String("installer", fmt.Sprintf("%T", installer)))
	return nil
}

// Boot calls Boot on every installed BootableInstaller that has not been
// booted yet, in installation order. It stops at the first failure.
func (c *Container) Boot() error {
	if c.core.isDisposed() {
		return ErrDisposed
	}

	c.core.mu.Lock()
	entries := append([]*installerEntry(nil), c.core.installers...)
	c.core.mu.Unlock()

	for _, entry := range entries {
		if entry.booted {
			continue
		}

		if bootable, ok := entry.installer.(BootableInstaller); ok {
			if err := bootable.Boot(c); err != nil {
				return fmt.Errorf("installer %T boot failed: %w", entry.installer, err)
			}
		}
		entry.booted = true
	}

	return nil
}

// Installers returns the installers installed in c, in installation order.
func (c *Container) Installers() []Installer {
	c.core.mu.Lock()
	defer c.core.mu.Unlock()

	installers := make([]Installer, len(c.core.installers))
	for i, entry := range c.core.installers {
		installers[i] = entry.installer
	}
	return installers
}
