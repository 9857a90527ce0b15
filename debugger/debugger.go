// Package debugger implements the VM's interactive --debug REPL: a
// liner-backed prompt dispatching a small fixed command set against a
// running supervisor, in the ConsoleReader + dispatch-table idiom used
// by S370's command/reader and command/parser packages.
package debugger

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/netizen-a/stackl/supervisor"
)

type command struct {
	name    string
	min     int // minimum unambiguous prefix length
	process func(*Session, []string) error
}

var commands = []command{
	{name: "step", min: 2, process: (*Session).cmdStep},
	{name: "continue", min: 1, process: (*Session).cmdContinue},
	{name: "regs", min: 1, process: (*Session).cmdRegs},
	{name: "mem", min: 1, process: (*Session).cmdMem},
	{name: "break", min: 1, process: (*Session).cmdBreak},
	{name: "trace", min: 1, process: (*Session).cmdTrace},
	{name: "quit", min: 1, process: (*Session).cmdQuit},
}

// Session is one interactive debugging session over a supervisor.
type Session struct {
	Sup         *supervisor.Supervisor
	breakpoints map[int32]bool
	quit        bool
}

// NewSession builds a debugger session over sup.
func NewSession(sup *supervisor.Supervisor) *Session {
	return &Session{Sup: sup, breakpoints: map[int32]bool{}}
}

// Run drives the REPL until the user quits, the input stream ends, or
// Ctrl-C/Ctrl-D aborts the prompt.
func (s *Session) Run() error {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(completeCommand)

	for !s.quit {
		input, err := line.Prompt("stackl> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				return nil
			}
			return err
		}
		line.AppendHistory(input)
		if err := s.dispatch(input); err != nil {
			fmt.Println("error: " + err.Error())
		}
	}
	return nil
}

func (s *Session) dispatch(input string) error {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return nil
	}
	name := strings.ToLower(fields[0])

	match := matchCommand(name)
	if match == nil {
		return fmt.Errorf("command not found: %s", name)
	}
	return match.process(s, fields[1:])
}

func matchCommand(name string) *command {
	var found *command
	for i := range commands {
		c := &commands[i]
		if len(name) < c.min || len(name) > len(c.name) || !strings.HasPrefix(c.name, name) {
			continue
		}
		if found != nil {
			return nil // ambiguous prefix
		}
		found = c
	}
	return found
}

func completeCommand(partial string) []string {
	var out []string
	for _, c := range commands {
		if strings.HasPrefix(c.name, partial) {
			out = append(out, c.name+" ")
		}
	}
	return out
}

// cmdStep executes n instructions (default 1), stopping early if the
// machine halts, faults, or hits a breakpoint.
func (s *Session) cmdStep(args []string) error {
	n := 1
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("step: invalid count %q", args[0])
		}
		n = v
	}

	s.Sup.Mu.Lock()
	defer s.Sup.Mu.Unlock()
	for i := 0; i < n; i++ {
		if s.Sup.M.Flag.Halted() {
			fmt.Println("machine halted")
			return nil
		}
		if err := s.Sup.M.Step(); err != nil {
			return err
		}
		if s.breakpoints[s.Sup.M.Ip] {
			fmt.Printf("breakpoint hit at %d\n", s.Sup.M.Ip)
			return nil
		}
	}
	return nil
}

// cmdContinue runs until halted, a fault occurs, or a breakpoint is hit.
func (s *Session) cmdContinue(_ []string) error {
	for {
		s.Sup.Mu.Lock()
		halted := s.Sup.M.Flag.Halted()
		var err error
		if !halted {
			err = s.Sup.M.Step()
		}
		ip := s.Sup.M.Ip
		s.Sup.Mu.Unlock()

		if err != nil {
			return err
		}
		if halted {
			fmt.Println("machine halted")
			return nil
		}
		if s.breakpoints[ip] {
			fmt.Printf("breakpoint hit at %d\n", ip)
			return nil
		}
	}
}

// cmdRegs prints every architectural register.
func (s *Session) cmdRegs(_ []string) error {
	s.Sup.Mu.RLock()
	defer s.Sup.Mu.RUnlock()

	m := s.Sup.M
	fmt.Printf("BP=%d LP=%d IP=%d SP=%d FP=%d IVEC=%d FLAG=%#08x\n",
		m.Bp, m.Lp, m.Ip, m.Sp, m.Fp, m.Ivec, m.Flag.Pack())
	return nil
}

// cmdMem dumps len words of memory starting at addr.
func (s *Session) cmdMem(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: mem <addr> <len>")
	}
	addr, err := strconv.ParseInt(args[0], 0, 32)
	if err != nil {
		return fmt.Errorf("mem: invalid address %q", args[0])
	}
	count, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("mem: invalid length %q", args[1])
	}

	s.Sup.Mu.RLock()
	defer s.Sup.Mu.RUnlock()
	for i := 0; i < count; i++ {
		word, err := s.Sup.M.Mem.ReadWord(uint32(addr) + uint32(i*4))
		if err != nil {
			return err
		}
		fmt.Printf("%08x: %d\n", uint32(addr)+uint32(i*4), word)
	}
	return nil
}

// cmdBreak toggles a breakpoint at addr.
func (s *Session) cmdBreak(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: break <addr>")
	}
	addr, err := strconv.ParseInt(args[0], 0, 32)
	if err != nil {
		return fmt.Errorf("break: invalid address %q", args[0])
	}
	a := int32(addr)
	if s.breakpoints[a] {
		delete(s.breakpoints, a)
		fmt.Printf("breakpoint cleared at %d\n", a)
	} else {
		s.breakpoints[a] = true
		fmt.Printf("breakpoint set at %d\n", a)
	}
	return nil
}

// cmdTrace turns instruction tracing on or off by setting the machine's
// Trace field directly (the flag SET_TRACE/CLR_TRACE also set), so trace
// lines go to the machine's TraceOut.
func (s *Session) cmdTrace(args []string) error {
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		return errors.New("usage: trace on|off")
	}
	s.Sup.Mu.Lock()
	defer s.Sup.Mu.Unlock()
	s.Sup.M.Trace = args[0] == "on"
	return nil
}

func (s *Session) cmdQuit(_ []string) error {
	s.quit = true
	return nil
}
