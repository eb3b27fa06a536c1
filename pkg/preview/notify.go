package preview

import (
	"io"

	"github.com/charmbracelet/log"
)

// Notifier shows messages to the user running the preview, outside the
// page itself.
type Notifier interface {
	Info(msg string)
	Warn(msg string)
	Error(msg string)
}

// LogNotifier writes notices to a logger.
type LogNotifier struct {
	Logger *log.Logger
}

// NewLogNotifier returns a notifier writing to l. A nil logger discards.
func NewLogNotifier(l *log.Logger) *LogNotifier {
	if l == nil {
		l = log.New(io.Discard)
	}
	return &LogNotifier{Logger: l}
}

func (n *LogNotifier) Info(msg string)  { n.Logger.Info(msg) }
func (n *LogNotifier) Warn(msg string)  { n.Logger.Warn(msg) }
func (n *LogNotifier) Error(msg string) { n.Logger.Error(msg) }

var _ Notifier = (*LogNotifier)(nil)
