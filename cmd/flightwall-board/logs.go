package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/rivo/tview"
)

// LogLevel is the severity of a board event.
type LogLevel string

const (
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
)

// LogMessage is one board event.
type LogMessage struct {
	Time    time.Time
	Level   LogLevel
	Message string
}

// LogManager keeps recent board events and renders them into a text view.
// Process logs go to the log file; this panel only shows what the operator
// needs to see while watching the board.
type LogManager struct {
	textView    *tview.TextView
	messages    []LogMessage
	maxMessages int
	now         func() time.Time

	mu sync.Mutex
}

// NewLogManager creates a log panel holding at most maxMessages entries.
func NewLogManager(maxMessages int) *LogManager {
	textView := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetMaxLines(maxMessages)
	textView.SetBorder(true).SetTitle(" Events ")

	return &LogManager{
		textView:    textView,
		messages:    make([]LogMessage, 0, maxMessages),
		maxMessages: maxMessages,
		now:         time.Now,
	}
}

// View returns the tview component.
func (lm *LogManager) View() tview.Primitive {
	return lm.textView
}

// Add records a message. It must run on the UI goroutine, e.g. inside
// QueueUpdateDraw, because it writes to the text view.
func (lm *LogManager) Add(level LogLevel, format string, args ...interface{}) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	lm.messages = append(lm.messages, LogMessage{
		Time:    lm.now(),
		Level:   level,
		Message: fmt.Sprintf(format, args...),
	})
	if len(lm.messages) > lm.maxMessages {
		lm.messages = lm.messages[len(lm.messages)-lm.maxMessages:]
	}

	lm.textView.Clear()
	for _, msg := range lm.messages {
		fmt.Fprint(lm.textView, formatLogLine(msg))
	}
	lm.textView.ScrollToEnd()
}

// Messages returns a copy of the retained messages.
func (lm *LogManager) Messages() []LogMessage {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return append([]LogMessage(nil), lm.messages...)
}

func formatLogLine(msg LogMessage) string {
	return fmt.Sprintf("[gray]%s[-] [%s]%-5s[-] %s\n",
		msg.Time.Format("15:04:05"), colorForLevel(msg.Level), msg.Level, tview.Escape(msg.Message))
}

func colorForLevel(level LogLevel) string {
	switch level {
	case LogLevelWarn:
		return "yellow"
	case LogLevelError:
		return "red"
	default:
		return "white"
	}
}
