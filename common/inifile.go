package common

import (
	"errors"
	"io"
	"os"
	"path"

	ini "github.com/lars-t-hansen/ini"
)

// Per-user defaults live in ~/.sacctcollapse:
//
//	[defaults]
//	config=$HOME/sacctcollapse.yaml
//	data-dir=/cluster/shared/sacct/split
//	out-dir=/cluster/shared/sacct/collapsed
//	log-level=info
//
// Values are environment-expanded.  A command-line value always wins.

// MT: Constant after initialization
var (
	p               = ini.NewParser()
	store           *ini.Store
	defaults        = p.AddSection("defaults")
	DefaultConfig   = defaults.AddString("config")
	DefaultDataDir  = defaults.AddString("data-dir")
	DefaultOutDir   = defaults.AddString("out-dir")
	DefaultLogLevel = defaults.AddString("log-level")
)

func init() {
	home := os.Getenv("HOME")
	if home == "" {
		return
	}
	fn := path.Join(path.Clean(home), ".sacctcollapse")
	input, err := os.Open(fn)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			Log.Errorf("Error in trying to open %s: %s", fn, err.Error())
		}
		return
	}
	defer input.Close()
	if err := LoadDefaults(input); err != nil {
		Log.Errorf("Error in trying to parse %s: %s", fn, err.Error())
	}
}

// LoadDefaults replaces the defaults with those read from `input`.
func LoadDefaults(input io.Reader) error {
	s, err := p.Parse(input)
	if err != nil {
		return err
	}
	store = s
	return nil
}

func HasDefault(f *ini.Field) bool {
	return store != nil && f.Present(store)
}

func ApplyDefault(sp *string, f *ini.Field) bool {
	if *sp != "" || store == nil || !f.Present(store) {
		return false
	}
	*sp = os.ExpandEnv(f.StringVal(store))
	return true
}
