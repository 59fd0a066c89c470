package capnp

import (
	"io"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/rs/zerolog"
)

// NewLogger builds a zerolog.Logger suitable for Message.Logger,
// writing level-tagged, timestamped events to w (spec §4.J). It is a
// convenience constructor only; any *zerolog.Logger works equally
// well, including the global github.com/rs/zerolog/log logger.
func NewLogger(w io.Writer, level zerolog.Level) *zerolog.Logger {
	if w == nil {
		w = colorable.NewColorable(os.Stderr)
	}
	log := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return &log
}
