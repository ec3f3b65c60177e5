package render

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/dvirtanen/logdex/internal/config"
	"github.com/dvirtanen/logdex/internal/logfile"
	"github.com/dvirtanen/logdex/internal/source"
	"github.com/dvirtanen/logdex/pkg/logformat"
)

// Renderer applies styling to lines
type Renderer interface {
	Render(line *source.Line) string
}

// LogLevelRenderer colors lines based on log level
type LogLevelRenderer struct {
	classifier *logformat.LevelClassifier
	styles     map[source.LogLevel]lipgloss.Style
}

// NewLogLevelRenderer creates a renderer with config
func NewLogLevelRenderer(cfg *config.Config) *LogLevelRenderer {
	classifier := logformat.NewLevelClassifier(&cfg.LogLevels)

	styles := map[source.LogLevel]lipgloss.Style{
		source.LevelUnknown: lipgloss.NewStyle(),
		source.LevelTrace:   lipgloss.NewStyle().Foreground(lipgloss.Color(cfg.Theme.Levels.Trace)),
		source.LevelDebug:   lipgloss.NewStyle().Foreground(lipgloss.Color(cfg.Theme.Levels.Debug)),
		source.LevelInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color(cfg.Theme.Levels.Info)),
		source.LevelWarn:    lipgloss.NewStyle().Foreground(lipgloss.Color(cfg.Theme.Levels.Warn)),
		source.LevelError:   lipgloss.NewStyle().Foreground(lipgloss.Color(cfg.Theme.Levels.Error)),
		source.LevelFatal:   lipgloss.NewStyle().Foreground(lipgloss.Color(cfg.Theme.Levels.Fatal)),
	}

	return &LogLevelRenderer{
		classifier: classifier,
		styles:     styles,
	}
}

// Render applies log level styling to a line
func (r *LogLevelRenderer) Render(line *source.Line) string {
	// Detect level if not already set by the indexer's locked format
	level := line.Level
	if level == source.LevelUnknown {
		level = fromCoreLevelForRender(r.classifier.Detect(line.Content))
	}

	style := r.styles[level]
	return style.Render(string(line.Content))
}

func fromCoreLevelForRender(l logfile.Level) source.LogLevel {
	switch l {
	case logfile.LevelTrace:
		return source.LevelTrace
	case logfile.LevelDebug:
		return source.LevelDebug
	case logfile.LevelInfo:
		return source.LevelInfo
	case logfile.LevelWarn:
		return source.LevelWarn
	case logfile.LevelError:
		return source.LevelError
	case logfile.LevelFatal:
		return source.LevelFatal
	default:
		return source.LevelUnknown
	}
}

// PlainRenderer renders without styling
type PlainRenderer struct{}

// NewPlainRenderer creates a plain renderer
func NewPlainRenderer() *PlainRenderer {
	return &PlainRenderer{}
}

// Render returns the line content as-is
func (r *PlainRenderer) Render(line *source.Line) string {
	return string(line.Content)
}
