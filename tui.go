package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"whisgo/audio"
	"whisgo/clipboard"
	"whisgo/history"
	"whisgo/hotkey"
	"whisgo/log"
	"whisgo/recorder"
	"whisgo/shutdown"
	"whisgo/transcriber"
)

type tickMsg time.Time

type transcriptionDoneMsg struct {
	outcome Outcome
	err     error
}

type devicePickedMsg struct{ err error }

type tuiState int

const (
	tuiStateIdle tuiState = iota
	tuiStateRecording
	tuiStateTranscribing
)

const (
	historyRows     = 8
	hotkeyLongPress = 400 * time.Millisecond
)

type tuiModel struct {
	ctx context.Context
	app *app

	state             tuiState
	frame             int
	recordingDuration float64
	audioLevel        float64
	peakLevel         float64
	width, height     int
	deviceLine        string
	modelLine         string
	lastText          string
	status            string // transient note under the text
	errText           string
	copiedToClipboard bool
	noSpeech          bool
	showHistory       bool
	quitting          bool // quit once the in-flight transcription lands
	entries           []history.Transcription
}

var (
	pixelColorsRec   = []string{"", "226", "220", "214", "208", "196", "160", "124", "88", "52", "236", "236", "236", "236", "255", "249"}
	pixelColorsIdle  = []string{"", "231", "224", "217", "210", "160", "124", "88", "52", "236", "236", "236", "236", "236", "255", "249"}
	pixelColorsBusy  = []string{"", "195", "159", "123", "87", "45", "39", "33", "27", "17", "236", "236", "236", "236", "255", "249"}
	palettes         = map[tuiState]*eyePalette{}
	statusRecStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	statusIdleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	statusBusyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	dimStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warnStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	errStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
	textStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	copiedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	helpStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	helpKeyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	historyTimeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
)

// eyePalette holds pre-computed pixel styles so rendering doesn't allocate.
type eyePalette struct {
	fg [16]lipgloss.Style
	bg [16][16]lipgloss.Style
}

func newEyePalette(colors []string) *eyePalette {
	p := &eyePalette{}
	for i, fg := range colors {
		if fg == "" {
			continue
		}
		p.fg[i] = lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
		for j, bg := range colors {
			if bg != "" {
				p.bg[i][j] = lipgloss.NewStyle().Foreground(lipgloss.Color(fg)).Background(lipgloss.Color(bg))
			}
		}
	}
	return p
}

func init() {
	palettes[tuiStateIdle] = newEyePalette(pixelColorsIdle)
	palettes[tuiStateRecording] = newEyePalette(pixelColorsRec)
	palettes[tuiStateTranscribing] = newEyePalette(pixelColorsBusy)
}

func newTUIModel(ctx context.Context, a *app) tuiModel {
	m := tuiModel{ctx: ctx, app: a}
	m.refreshInfo()
	return m
}

func (m *tuiModel) refreshInfo() {
	m.deviceLine = deviceLineText(m.app.registry.Selected())
	m.modelLine = "[" + transcriber.LoadSettings(m.app.kv).Model + "]"
	m.entries = m.app.history.Entries()
	if latest, ok := m.app.history.Latest(); ok && m.lastText == "" {
		m.lastText = latest.Text
	}
}

func deviceLineText(dev *audio.DeviceInfo) string {
	name := "system default"
	suffix := ""
	if dev != nil {
		name = dev.Name
		if audio.IsBluetooth(dev.Name) {
			suffix = " (BT!)"
		}
	}
	return "mic: " + name + suffix
}

func tuiTick() tea.Cmd {
	return tea.Tick(60*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		m.frame++
		if m.state == tuiStateRecording {
			rec := m.app.rec
			if rec.State() == recorder.Failed {
				m.state = tuiStateIdle
				m.errText = userMessage(rec.Err())
				return m, tuiTick()
			}
			m.recordingDuration = rec.Duration().Seconds()
			level := rec.Level()
			m.audioLevel = m.audioLevel*0.6 + level*0.4
			if level > m.peakLevel {
				m.peakLevel = level
			}
		}
		return m, tuiTick()

	case transcriptionDoneMsg:
		m.state = tuiStateIdle
		m.audioLevel = 0
		m.noSpeech = false
		m.copiedToClipboard = false
		switch {
		case msg.err != nil:
			m.errText = userMessage(msg.err)
		case msg.outcome.Skipped:
			m.status = "recording too short"
		case msg.outcome.NoSpeech:
			m.noSpeech = true
			m.lastText = "(no speech detected)"
		default:
			m.lastText = msg.outcome.Entry.Text
			m.copiedToClipboard = msg.outcome.Copied
		}
		m.entries = m.app.history.Entries()
		if m.quitting {
			return m, tea.Quit
		}

	case hotkey.Event:
		switch {
		case msg.Start && m.state == tuiStateIdle:
			log.Info("hotkey_start")
			return m.startRecording()
		case !msg.Start && m.state == tuiStateRecording:
			log.Info("hotkey_stop_" + string(msg.Mode))
			return m.stopRecording()
		}

	case devicePickedMsg:
		if msg.err != nil {
			m.errText = msg.err.Error()
		}
		m.refreshInfo()
	}
	return m, nil
}

func (m tuiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		if m.state == tuiStateTranscribing {
			m.quitting = true
			m.status = "finishing transcription..."
			return m, nil
		}
		if m.state == tuiStateRecording {
			m.app.pipeline.Cancel()
		}
		return m, tea.Quit

	case "esc":
		if m.state == tuiStateRecording {
			m.app.pipeline.Cancel()
			m.state = tuiStateIdle
			m.status = "recording discarded"
		}

	case " ", "space", "enter":
		switch m.state {
		case tuiStateIdle:
			return m.startRecording()
		case tuiStateRecording:
			return m.stopRecording()
		}

	case "c":
		if e, ok := m.app.history.Latest(); ok {
			if err := clipboard.Copy(e.Text); err != nil {
				m.errText = err.Error()
			} else {
				m.status = "✓ copied"
			}
		}

	case "h":
		m.showHistory = !m.showHistory

	case "s":
		m.app.sounds.SetEnabled(!m.app.sounds.Enabled())
		if m.app.sounds.Enabled() {
			m.status = "sounds on"
		} else {
			m.status = "sounds off"
		}

	case "d":
		if m.state != tuiStateIdle {
			return m, nil
		}
		return m, tea.Exec(&pickerExec{ctx: m.ctx, registry: m.app.registry}, func(err error) tea.Msg {
			return devicePickedMsg{err: err}
		})
	}
	return m, nil
}

func (m tuiModel) startRecording() (tea.Model, tea.Cmd) {
	m.errText = ""
	m.status = ""
	if err := m.app.pipeline.StartRecording(m.ctx); err != nil {
		m.errText = userMessage(err)
		return m, nil
	}
	m.state = tuiStateRecording
	m.recordingDuration = 0
	m.audioLevel = 0
	m.peakLevel = 0
	return m, nil
}

func (m tuiModel) stopRecording() (tea.Model, tea.Cmd) {
	m.state = tuiStateTranscribing
	ctx, p := m.ctx, m.app.pipeline
	return m, func() tea.Msg {
		out, err := p.StopAndTranscribe(ctx)
		return transcriptionDoneMsg{outcome: out, err: err}
	}
}

// pickerExec runs the raw-mode device picker while the TUI has released
// the terminal.
type pickerExec struct {
	ctx      context.Context
	registry *audio.Registry
}

func (p *pickerExec) Run() error {
	fmt.Print("\x1b[2J\x1b[H")
	_, err := p.registry.SelectInteractive(p.ctx)
	return err
}

func (p *pickerExec) SetStdin(io.Reader)  {}
func (p *pickerExec) SetStdout(io.Writer) {}
func (p *pickerExec) SetStderr(io.Writer) {}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	const eyeWidth = 45
	level := m.audioLevel
	if m.state != tuiStateRecording {
		level = 0
	}

	eye := renderHALEye(m.frame, level, m.state)

	var infoLines []string
	switch m.state {
	case tuiStateRecording:
		infoLines = append(infoLines, statusRecStyle.Render(fmt.Sprintf("● REC %.1fs", m.recordingDuration)))
		if m.recordingDuration > 1.0 && m.peakLevel < 0.02 {
			infoLines = append(infoLines, warnStyle.Render("  ⚠ no voice detected"))
		}
	case tuiStateTranscribing:
		infoLines = append(infoLines, statusBusyStyle.Render("◌ TRANSCRIBING"))
	default:
		infoLines = append(infoLines, statusIdleStyle.Render("○ STANDBY"))
	}
	infoLines = append(infoLines, dimStyle.Render(m.modelLine))
	infoLines = append(infoLines, dimStyle.Render(m.deviceLine))
	if m.errText != "" {
		infoLines = append(infoLines, errStyle.Render(m.errText))
	}
	infoLines = append(infoLines, "")

	keys := [][2]string{{"space", "record/stop"}, {"c", "copy"}, {"h", "history"}, {"d", "device"}, {"s", "sounds"}, {"esc", "discard"}, {"q", "quit"}}
	var help []string
	for _, k := range keys {
		help = append(help, helpKeyStyle.Render(k[0])+helpStyle.Render(" "+k[1]))
	}
	infoLines = append(infoLines, strings.Join(help[:4], "  "), strings.Join(help[4:], "  "))
	infoLines = append(infoLines, helpStyle.Render("whisgo "+version))

	for _, line := range infoLines {
		eye += line + "\n"
	}
	eyeLines := strings.Split(eye, "\n")

	logWidth := max(m.width-eyeWidth-1, 20)
	wrapWidth := max(logWidth-2, 10)

	var right strings.Builder
	if m.showHistory {
		right.WriteString(dimStyle.Render(fmt.Sprintf("History (%d)", len(m.entries))) + "\n\n")
		for i, e := range m.entries {
			if i == historyRows {
				break
			}
			ts := e.Time().Local().Format("15:04")
			line := wrapText(e.Text, max(wrapWidth-8, 10))[0]
			right.WriteString(historyTimeStyle.Render(fmt.Sprintf("%2d %s ", i+1, ts)) + textStyle.Render(line) + "\n")
		}
		if len(m.entries) == 0 {
			right.WriteString(dimStyle.Render("No transcriptions yet"))
		}
	} else if m.lastText != "" {
		right.WriteString(dimStyle.Render("Last transcription") + "\n\n")
		style := textStyle
		if m.noSpeech {
			style = warnStyle
		}
		lines := wrapText(m.lastText, wrapWidth)
		for i, line := range lines {
			right.WriteString(style.Render(line))
			if i == len(lines)-1 && m.copiedToClipboard {
				right.WriteString(" " + copiedStyle.Render("[✓ copied]"))
			}
			right.WriteString("\n")
		}
	} else {
		right.WriteString(dimStyle.Render("No transcriptions yet"))
	}
	if m.status != "" {
		right.WriteString("\n" + dimStyle.Render(m.status))
	}

	logPanel := lipgloss.NewStyle().
		Width(logWidth).
		Height(m.height).
		PaddingLeft(1).
		Render(right.String())

	eyePadded := make([]string, m.height)
	for i := range eyePadded {
		if i < len(eyeLines) {
			eyePadded[i] = eyeLines[i]
		} else {
			eyePadded[i] = strings.Repeat(" ", eyeWidth-1)
		}
	}

	eyePanel := lipgloss.NewStyle().
		Width(eyeWidth - 1).
		Height(m.height).
		Render(strings.Join(eyePadded, "\n"))

	return lipgloss.JoinHorizontal(lipgloss.Top, eyePanel, logPanel)
}

// runTUI mounts the interactive recorder once the audio backend is up.
func runTUI(parent context.Context, opts *globalOptions) error {
	ctx, stop := shutdown.Context(parent)
	defer stop()

	a, err := openApp(opts)
	if err != nil {
		return err
	}
	defer a.Close()

	b := startBackend(newAudioContext, true)
	defer b.Close()
	if !b.Ready() {
		fmt.Fprintln(os.Stderr, "Connecting to audio...")
	}

	return mountWhenReady(ctx, b, func(actx audio.Context) error {
		if err := a.attachAudio(actx); err != nil {
			return err
		}
		a.warm(ctx)
		log.SessionStart(transcriber.LoadSettings(a.kv).Model, deviceLineText(a.registry.Selected()))

		m := newTUIModel(ctx, a)
		p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
		if stop := listenHotkey(ctx, a.cfg.Hotkey, p.Send); stop != nil {
			defer stop()
		}
		_, err := p.Run()
		if err != nil && ctx.Err() != nil {
			return nil
		}
		return err
	})
}

func renderHALEye(frame int, level float64, state tuiState) string {
	const charsW = 44
	const charsH = 15
	const pixW = charsW
	const pixH = charsH * 2

	centerX := float64(pixW) / 2
	centerY := float64(pixH) / 2

	var breathe float64
	switch state {
	case tuiStateRecording:
		breathe = math.Sin(float64(frame)*0.10)*0.03 + level*10.0 - 0.05
	case tuiStateTranscribing:
		breathe = math.Sin(float64(frame)*0.30)*0.05 - 0.03
	default:
		breathe = math.Sin(float64(frame)*0.08)*0.02 - 0.05
	}

	pixels := make([][]int, pixH)
	for i := range pixels {
		pixels[i] = make([]int, pixW)
	}

	type ring struct {
		radius     float64
		breatheAmt float64
		colorIdx   int
	}

	rings := []ring{
		{0.6, 0.10, 1},
		{1.3, 0.12, 2},
		{2.0, 0.15, 3},
		{2.8, 0.35, 4}, // red rings: high reactivity
		{3.5, 0.40, 5},
		{4.2, 0.38, 6},
		{5.0, 0.30, 7},
		{5.8, 0.15, 8},
		{6.5, 0.03, 9},
		{7.2, 0.0, 10},
		{8.0, 0.0, 11},
		{10.0, 0.0, 12},
		{12.0, 0.0, 13},
	}

	for y := 0; y < pixH; y++ {
		for x := 0; x < pixW; x++ {
			dx := float64(x) - centerX
			dy := float64(y) - centerY
			dist := math.Sqrt(dx*dx + dy*dy)
			for _, r := range rings {
				radius := r.radius + breathe*r.breatheAmt*20
				if radius > 10.0 {
					radius = 10.0
				}
				if dist < radius {
					pixels[y][x] = r.colorIdx
					break
				}
			}
		}
	}

	type spot struct {
		ox, oy float64
		radius float64
		color  int
	}
	dSide := 9.0
	dSide2 := 7.2
	dTop := 10.0
	dTop2 := 8.2
	spots := []spot{
		{-dSide * 0.707, -dSide * 0.707, 0.7, 14},
		{-dSide2 * 0.707, -dSide2 * 0.707, 0.4, 15},
		{0, -dTop, 0.8, 14},
		{0, -dTop2, 0.6, 15},
		{dSide * 0.707, -dSide * 0.707, 0.7, 14},
		{dSide2 * 0.707, -dSide2 * 0.707, 0.4, 15},
		{0, -2.0, 0.6, 14},
	}
	for y := 0; y < pixH; y++ {
		for x := 0; x < pixW; x++ {
			px := float64(x) - centerX
			py := float64(y) - centerY
			for _, s := range spots {
				dx := px - s.ox
				dy := py - s.oy
				rLen := math.Sqrt(s.ox*s.ox + s.oy*s.oy)
				if rLen < 0.001 {
					rLen = 1
				}
				tx, ty := -s.oy/rLen, s.ox/rLen
				dt := dx*tx + dy*ty
				dn := dx*(-ty) + dy*tx
				if (dt*dt)/9.0+dn*dn < s.radius*s.radius {
					pixels[y][x] = s.color
				}
			}
		}
	}

	pal := palettes[state]

	var result strings.Builder
	for cy := 0; cy < charsH; cy++ {
		for cx := 0; cx < charsW; cx++ {
			topY := cy * 2
			botY := cy*2 + 1
			top := 0
			bot := 0
			if topY < pixH {
				top = pixels[topY][cx]
			}
			if botY < pixH {
				bot = pixels[botY][cx]
			}
			if top == 0 && bot == 0 {
				result.WriteString(" ")
			} else if top == bot {
				result.WriteString(pal.fg[top].Render("█"))
			} else if top != 0 && bot == 0 {
				result.WriteString(pal.fg[top].Render("▀"))
			} else if top == 0 && bot != 0 {
				result.WriteString(pal.fg[bot].Render("▄"))
			} else {
				result.WriteString(pal.bg[top][bot].Render("▀"))
			}
		}
		result.WriteString("\n")
	}
	return result.String()
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		// Find last space within width
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}

// listenHotkey forwards global shortcut presses to send. It returns nil
// when no shortcut is configured or it cannot be registered.
func listenHotkey(ctx context.Context, combo string, send func(tea.Msg)) func() {
	if combo == "" {
		return nil
	}
	c, err := hotkey.ParseCombo(combo)
	if err != nil {
		log.Warnf("hotkey disabled: %v", err)
		return nil
	}
	hk := hotkey.New(c)
	if err := hk.Register(); err != nil {
		log.Warnf("hotkey disabled: %v", err)
		return nil
	}
	log.Infof("hotkey registered: %s", c)

	ctx, cancel := context.WithCancel(ctx)
	hy := hotkey.NewHybrid(ctx, hk, hotkeyLongPress)
	go func() {
		for ev := range hy.Events() {
			send(ev)
		}
	}()
	return func() {
		cancel()
		hk.Unregister()
	}
}
