package diagram

import (
	"errors"
	"fmt"
)

const (
	// UnlimitedDepth renders every trace.
	UnlimitedDepth = -1
	// DefaultMaxMessageLength keeps message lines under PlantUML's line size limit.
	DefaultMaxMessageLength = 4000
)

// Options controls what the diagrams show. It is passed by value to every
// formatter so a run never depends on package state.
type Options struct {
	NoGas       bool `yaml:"noGas"`
	NoParams    bool `yaml:"noParams"`
	NoEther     bool `yaml:"noEther"`
	NoDelegates bool `yaml:"noDelegates"`
	NoLogs      bool `yaml:"noLogs"`
	NoTxDetails bool `yaml:"noTxDetails"`
	Depth       int  `yaml:"depth" default:"-1"`
	// Currency is the native currency symbol. Empty uses the network's.
	Currency string `yaml:"currency"`
	Title    string `yaml:"title"`
	Network  string `yaml:"network"`
	// MaxMessageLength caps a composed message line. Longer lines are truncated.
	MaxMessageLength int `yaml:"maxMessageLength" default:"4000"`
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Depth:            UnlimitedDepth,
		Currency:         "ETH",
		MaxMessageLength: DefaultMaxMessageLength,
	}
}

func (o *Options) Validate() error {
	if o.Depth < UnlimitedDepth {
		return fmt.Errorf("depth must be %d (unlimited) or greater, got %d", UnlimitedDepth, o.Depth)
	}

	if o.MaxMessageLength <= 0 {
		return errors.New("maxMessageLength must be positive")
	}

	return nil
}

// visible reports whether a trace or participant at depth is shown.
func (o *Options) visible(depth int) bool {
	return o.Depth == UnlimitedDepth || depth <= o.Depth
}
