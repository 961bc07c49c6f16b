// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 3DES

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/3DES/WatchdogBoard/pkg/lineproto"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live board status display",
	Long: `Interactive TUI polling the board: watchdog state, inputs,
accumulated diagnoses and the frame counter.

Keys:
  w  arm / re-trigger the watchdog
  c  clear the watchdog (latches the board in ERROR!)
  t  request the repeated self test
  0-6  toggle a logical output
  q  quit`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

// Poll results delivered into the TUI event loop.
type pollMsg struct {
	inputs    [lineproto.SupportedInputs]bool
	diagnoses uint16
	firstErr  uint16
	tests     uint16
	err       error
}

type commandResultMsg struct {
	line string
	err  error
}

type monitorTickMsg time.Time

type monitorModel struct {
	client   *lineproto.Client
	connInfo string
	version  string
	sp       spinner.Model

	running   bool
	lock      bool
	inputs    [lineproto.SupportedInputs]bool
	outputs   [lineproto.SupportedOutputs]bool
	diagnoses uint16
	firstErr  uint16
	tests     uint16

	log      []string
	lastErr  error
	quitting bool
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	dimStyle   = lipgloss.NewStyle().Faint(true)
)

func monitorTick() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(monitorTick(), m.sp.Tick, tea.EnterAltScreen)
}

// poll runs one status round trip; it executes inside a tea.Cmd, never
// in the update loop.
func (m monitorModel) poll() tea.Msg {
	var msg pollMsg
	for i := uint16(0); i < lineproto.SupportedInputs; i++ {
		response, err := m.client.Do(lineproto.CmdReadInput, i)
		if err != nil {
			msg.err = err
			return msg
		}
		if response.IsNack() {
			continue
		}
		state, err := response.Uint(1)
		if err == nil {
			msg.inputs[i] = state != 0
		}
	}

	response, err := m.client.Do(lineproto.CmdDiagnoses)
	if err != nil {
		msg.err = err
		return msg
	}
	if !response.IsNack() {
		d, _ := response.Uint(0)
		e, _ := response.Uint(1)
		t, _ := response.Uint(2)
		msg.diagnoses, msg.firstErr, msg.tests = d, e, t
	}
	return msg
}

func (m monitorModel) command(command byte, args ...uint16) tea.Cmd {
	return func() tea.Msg {
		response, err := m.client.Do(command, args...)
		if err != nil {
			return commandResultMsg{err: err}
		}
		if response.IsNack() {
			return commandResultMsg{line: fmt.Sprintf("%c -> NACK %d", command, response.ErrCode)}
		}
		return commandResultMsg{line: fmt.Sprintf("%c -> %s", command, strings.Join(response.Fields, " "))}
	}
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case monitorTickMsg:
		return m, tea.Batch(m.poll, monitorTick())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.sp, cmd = m.sp.Update(msg)
		return m, cmd

	case pollMsg:
		if msg.err != nil {
			m.lastErr = msg.err
			return m, nil
		}
		m.lastErr = nil
		m.inputs = msg.inputs
		// accumulate until the user has seen them; a poll that drained
		// zeros must not wipe an unacknowledged fault
		m.diagnoses |= msg.diagnoses
		m.tests |= msg.tests
		if m.firstErr == 0 {
			m.firstErr = msg.firstErr
		}
		return m, nil

	case commandResultMsg:
		if msg.err != nil {
			m.lastErr = msg.err
			return m, nil
		}
		m.log = append(m.log, msg.line)
		if len(m.log) > 8 {
			m.log = m.log[len(m.log)-8:]
		}
		// W responses carry the running and lock states
		if strings.HasPrefix(msg.line, "W -> ") {
			fields := strings.Fields(strings.TrimPrefix(msg.line, "W -> "))
			if len(fields) == 3 {
				m.running = fields[1] == "1"
				m.lock = fields[2] == "1"
			}
		}
		return m, nil

	case tea.KeyMsg:
		switch key := msg.String(); key {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "w":
			return m, m.command(lineproto.CmdWatchdog, 1)
		case "c":
			return m, m.command(lineproto.CmdWatchdog, 0)
		case "t":
			return m, m.command(lineproto.CmdTest)
		case "0", "1", "2", "3", "4", "5", "6":
			idx := uint16(key[0] - '0')
			m.outputs[idx] = !m.outputs[idx]
			value := uint16(0)
			if m.outputs[idx] {
				value = 1
			}
			return m, m.command(lineproto.CmdSetOutput, idx, value)
		}
	}
	return m, nil
}

func onOff(v bool) string {
	if v {
		return okStyle.Render("ON ")
	}
	return dimStyle.Render("off")
}

func (m monitorModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", m.sp.View(), titleStyle.Render("Watchdog Board Monitor"))
	fmt.Fprintf(&b, "%s  version %s\n\n", dimStyle.Render(m.connInfo), m.version)

	state := okStyle.Render("running")
	if !m.running {
		state = errStyle.Render("stopped")
	}
	fmt.Fprintf(&b, "Watchdog: %s   Reset lock: %v   Next frame: %d\n\n",
		state, m.lock, m.client.NextFrameNumber())

	b.WriteString("Outputs:  ")
	for i, on := range m.outputs {
		fmt.Fprintf(&b, "%d:%s  ", i, onOff(on))
	}
	b.WriteString("\nInputs:   ")
	for i, on := range m.inputs {
		fmt.Fprintf(&b, "%d:%s  ", i, onOff(on))
	}
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Diagnoses: 0x%04x   First error: 0x%04x   Executed tests: 0x%04x\n\n",
		m.diagnoses, m.firstErr, m.tests)

	for _, line := range m.log {
		fmt.Fprintf(&b, "  %s\n", dimStyle.Render(line))
	}
	if m.lastErr != nil {
		fmt.Fprintf(&b, "\n%s\n", errStyle.Render(m.lastErr.Error()))
	}
	b.WriteString(dimStyle.Render("\n[w]atchdog [c]lear [t]est [0-6] outputs [q]uit\n"))
	return b.String()
}

func runMonitor(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	client := lineproto.NewClient(conn)
	response, err := client.Do(lineproto.CmdVersion)
	if err != nil {
		return err
	}
	if response.IsNack() && response.ErrCode == lineproto.ErrUnexpectedFrameNumber {
		// the board was already mid-session; the client has resynchronized
		response, err = client.Do(lineproto.CmdVersion)
		if err != nil {
			return err
		}
	}
	version := "?"
	if !response.IsNack() && len(response.Fields) > 0 {
		version = response.Fields[0]
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := monitorModel{client: client, connInfo: connInfo, version: version, sp: sp}
	_, err = tea.NewProgram(m).Run()
	return err
}
