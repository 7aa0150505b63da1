//go:build linux

// Command kiosk-mock emulates the remote control panel on a real or virtual
// CAN interface. It sends the control, timer and hint frames the controller
// reacts to, and dumps the status frames coming back.
//
// Usage:
//
//	kiosk-mock [flags]
//
// Flags:
//
//	-channel string   CAN interface name (default "can0")
//	-id string        Arbitration identifier for outbound frames, hex (default "0x0DA")
//
// A vcan interface works for local testing:
//
//	ip link add dev vcan0 type vcan && ip link set up vcan0
//	kiosk-mock -channel vcan0
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"

	"github.com/kioskbus/kioskbus-go/pkg/canbus"
	"github.com/kioskbus/kioskbus-go/pkg/filter"
)

// Frame kind bytes of the panel protocol.
const (
	kindControl = 0x04
	kindHint    = 0x05
	kindTimer   = 0x0C
)

// Folder selector bytes.
const (
	folderHun = 0x01
	folderEng = 0x02
)

func main() {
	channel := flag.String("channel", "can0", "CAN interface name")
	idSpec := flag.String("id", "0x0DA", "arbitration identifier for outbound frames, hex")
	flag.Parse()

	if err := run(*channel, *idSpec); err != nil {
		fmt.Fprintln(os.Stderr, "kiosk-mock:", err)
		os.Exit(1)
	}
}

func run(channel, idSpec string) error {
	id, err := filter.ParseID(idSpec)
	if err != nil {
		return err
	}
	bus, err := canbus.DialSocketCAN(channel, nil)
	if err != nil {
		return err
	}
	defer bus.Close()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "panel> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	p := &panel{bus: bus, id: id, folder: folderHun, out: rl.Stdout()}
	go p.dumpInbound()
	defer p.stopCountdown()

	p.printHelp()
	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(rl.Stdout(), "Exiting...")
			return nil
		}
		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			p.printHelp()

		case "1", "2", "3", "4", "5", "6", "7", "8":
			index, _ := strconv.Atoi(cmd)
			p.sendControl(uint8(index))

		case "lang", "l":
			p.cmdLang(args)

		case "countdown", "cd":
			p.cmdCountdown(args)

		case "hint", "h":
			p.cmdHint(args)

		case "send":
			p.cmdSend(args)

		case "quit", "exit", "q":
			fmt.Fprintln(rl.Stdout(), "Exiting...")
			return nil

		default:
			fmt.Fprintf(rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

// panel holds the mock's sending state.
type panel struct {
	bus canbus.Bus
	id  uint32
	out io.Writer

	mu            sync.Mutex
	folder        uint8
	countdownStop chan struct{}
}

func (p *panel) printHelp() {
	fmt.Fprint(p.out, `Commands:
  1-8              play the given video in the selected folder
  lang hun|eng     select the content folder (default hun)
  countdown N      stream timer frames counting down from N seconds
  countdown stop   stop the timer stream
  hint K           send hint frame with selector K (hex or decimal)
  send ID#HEX      send a raw frame, e.g. send 0DA#0401020000000000
  help             show this help
  quit             exit
`)
}

func (p *panel) send(payload []byte) {
	frame, err := canbus.NewFrame(p.id, payload)
	if err != nil {
		fmt.Fprintf(p.out, "bad frame: %v\n", err)
		return
	}
	if err := p.bus.Send(frame); err != nil {
		fmt.Fprintf(p.out, "send failed: %v\n", err)
		return
	}
	fmt.Fprintf(p.out, "-> %s\n", frame)
}

func (p *panel) sendControl(index uint8) {
	p.mu.Lock()
	folder := p.folder
	p.mu.Unlock()
	p.send([]byte{kindControl, folder, index, 0, 0, 0, 0, 0})
}

func (p *panel) cmdLang(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(p.out, "usage: lang hun|eng")
		return
	}
	var folder uint8
	switch strings.ToLower(args[0]) {
	case "hun", "1":
		folder = folderHun
	case "eng", "2":
		folder = folderEng
	default:
		fmt.Fprintf(p.out, "unknown language %q\n", args[0])
		return
	}
	p.mu.Lock()
	p.folder = folder
	p.mu.Unlock()
	fmt.Fprintf(p.out, "folder selector set to 0x%02X\n", folder)
}

func (p *panel) cmdCountdown(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(p.out, "usage: countdown N|stop")
		return
	}
	if strings.EqualFold(args[0], "stop") {
		p.stopCountdown()
		fmt.Fprintln(p.out, "countdown stream stopped")
		return
	}
	seconds, err := strconv.Atoi(args[0])
	if err != nil || seconds < 0 || seconds > 0xFFFF {
		fmt.Fprintf(p.out, "invalid seconds %q\n", args[0])
		return
	}
	p.stopCountdown()

	stop := make(chan struct{})
	p.mu.Lock()
	p.countdownStop = stop
	p.mu.Unlock()

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		remaining := seconds
		for {
			p.send([]byte{kindTimer, 0x01, byte(remaining >> 8), byte(remaining), 0, 0, 0, 0})
			if remaining == 0 {
				return
			}
			select {
			case <-stop:
				return
			case <-ticker.C:
				remaining--
			}
		}
	}()
	fmt.Fprintf(p.out, "streaming countdown from %d s\n", seconds)
}

func (p *panel) stopCountdown() {
	p.mu.Lock()
	stop := p.countdownStop
	p.countdownStop = nil
	p.mu.Unlock()
	if stop != nil {
		close(stop)
	}
}

func (p *panel) cmdHint(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(p.out, "usage: hint K")
		return
	}
	key, err := filter.ParseByte(args[0])
	if err != nil {
		fmt.Fprintf(p.out, "invalid hint selector %q\n", args[0])
		return
	}
	p.send([]byte{kindHint, key, 0, 0, 0, 0, 0, 0})
}

// cmdSend sends a raw frame in the classic ID#HEXDATA notation.
func (p *panel) cmdSend(args []string) {
	if len(args) != 1 || !strings.Contains(args[0], "#") {
		fmt.Fprintln(p.out, "usage: send ID#HEXDATA")
		return
	}
	spec := strings.SplitN(args[0], "#", 2)
	id, err := filter.ParseID(spec[0])
	if err != nil {
		fmt.Fprintf(p.out, "invalid identifier %q\n", spec[0])
		return
	}
	data := make([]byte, 0, canbus.PayloadSize)
	raw := spec[1]
	if len(raw)%2 != 0 || len(raw) > canbus.PayloadSize*2 {
		fmt.Fprintln(p.out, "data must be up to 8 hex bytes")
		return
	}
	for i := 0; i < len(raw); i += 2 {
		b, err := strconv.ParseUint(raw[i:i+2], 16, 8)
		if err != nil {
			fmt.Fprintf(p.out, "invalid hex data %q\n", raw)
			return
		}
		data = append(data, byte(b))
	}
	frame, err := canbus.NewFrame(id, data)
	if err != nil {
		fmt.Fprintf(p.out, "bad frame: %v\n", err)
		return
	}
	if err := p.bus.Send(frame); err != nil {
		fmt.Fprintf(p.out, "send failed: %v\n", err)
		return
	}
	fmt.Fprintf(p.out, "-> %s\n", frame)
}

// dumpInbound prints every received frame; status frames get decoded.
func (p *panel) dumpInbound() {
	for {
		frame, ok, err := p.bus.Receive(time.Second)
		if err != nil {
			return
		}
		if !ok {
			continue
		}
		if frame.Len == canbus.PayloadSize && frame.Data[0] == 0x03 {
			playing := "stopped"
			if frame.Data[1] == 1 {
				playing = "playing"
			}
			fmt.Fprintf(p.out, "<- %s  status: %s folder=0x%02X video=%d progress=%d%%\n",
				frame, playing, frame.Data[2], frame.Data[3], frame.Data[4])
			continue
		}
		fmt.Fprintf(p.out, "<- %s\n", frame)
	}
}
