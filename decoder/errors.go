package decoder

import "github.com/pkg/errors"

// Construction errors. These are fatal for the network/scorer pair.
var (
	ErrNoInputSymbols = errors.New("decoder: network has no input symbol table")
	ErrBadStateLabel  = errors.New("decoder: cannot parse acoustic state label")
	ErrStateRange     = errors.New("decoder: acoustic state is outside the scorer range")
	ErrNoStart        = errors.New("decoder: network has no start state")
	ErrConfig         = errors.New("decoder: invalid configuration")
)

// ErrNoHypothesis reports search exhaustion: no hypothesis survived a frame or
// no final state could be reached. The utterance should be skipped.
var ErrNoHypothesis = errors.New("decoder: no hypothesis")

// Extraction and sequencing errors. These indicate a violated invariant or a
// misuse of the step API, not bad input.
var (
	ErrNotInitialized = errors.New("decoder: PushInit has not been called")
	ErrClosed         = errors.New("decoder: utterance already closed by PushFinal")
	ErrNotClosed      = errors.New("decoder: PushFinal has not succeeded")
	ErrEmptyFinal     = errors.New("decoder: could not reach a final state")
	ErrMalformedFinal = errors.New("decoder: malformed terminal transition")
)

// ErrInputPushed is returned when PushInput is called twice for one utterance.
var ErrInputPushed = errors.New("decoder: input already pushed for this utterance")
