package cleaner

import (
	"github.com/rs/zerolog/log"

	"github.com/ysy950803/userdbclean/internal/model"
)

// Starter starts a run with the configured filter and verbosity.
type Starter interface {
	StartClean(only []string, verbose *bool) model.StartResult
}

// Trigger recognises the activation input and hands off to the starter.
// Feed never blocks on the maintenance work.
type Trigger struct {
	input   string
	starter Starter
}

func NewTrigger(input string, starter Starter) *Trigger {
	return &Trigger{input: input, starter: starter}
}

func (t *Trigger) Input() string {
	return t.input
}

// Feed returns ResultNoop unless input equals the trigger string exactly.
func (t *Trigger) Feed(input string) model.StartResult {
	if input != t.input {
		return model.ResultNoop
	}
	log.Debug().Str("input", input).Msg("cleaner trigger matched")
	return t.starter.StartClean(nil, nil)
}
