// Package botlog provides the logging contract used across the bot.
package botlog

import (
	"fmt"
	"log"
)

// Logger is the observability interface injected into every component.
type Logger interface {
	Printf(format string, v ...interface{})
	Warnf(format string, v ...interface{})
	Errorf(format string, v ...interface{})
}

// Std logs through the standard log package, tagging each line with the
// session flavour (desktop/mobile) and a component category.
type Std struct {
	Mobile   bool
	Category string
}

// New returns a Std logger for the given session flavour and category.
func New(mobile bool, category string) *Std {
	return &Std{Mobile: mobile, Category: category}
}

// With returns a copy of the logger scoped to another category.
func (s *Std) With(category string) *Std {
	return &Std{Mobile: s.Mobile, Category: category}
}

func (s *Std) prefix() string {
	flavour := "DESKTOP"
	if s.Mobile {
		flavour = "MOBILE"
	}
	return fmt.Sprintf("[%s] [%s] ", flavour, s.Category)
}

func (s *Std) Printf(format string, v ...interface{}) {
	log.Printf(s.prefix()+format, v...)
}

func (s *Std) Warnf(format string, v ...interface{}) {
	log.Printf(s.prefix()+"⚠️  "+format, v...)
}

func (s *Std) Errorf(format string, v ...interface{}) {
	log.Printf(s.prefix()+"ERROR: "+format, v...)
}

// Nop discards everything. Handy for tests.
type Nop struct{}

func (Nop) Printf(string, ...interface{}) {}
func (Nop) Warnf(string, ...interface{})  {}
func (Nop) Errorf(string, ...interface{}) {}
