//go:build linux

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"strings"

	"github.com/peterh/liner"
	"golang.org/x/sys/unix"
	"golang.org/x/term"

	gtkserver "github.com/smallbasic/smallbasic.plugins-sub001"
)

// maxLine bounds one request line
const maxLine = 1 << 20

func (a *app) serve() error {
	a.log.DebugCat(gtkserver.CatIO, "serving on %s %s", a.opts.Mode, a.opts.Address)
	switch a.opts.Mode {
	case gtkserver.ModeStdin:
		if term.IsTerminal(int(os.Stdin.Fd())) {
			return a.serveTerminal()
		}
		return a.serveStream(os.Stdin, os.Stdout)
	case gtkserver.ModeFIFO:
		return a.serveFIFO(a.opts.Address)
	case gtkserver.ModeTCP:
		return a.serveTCP(a.opts.Address, a.opts.MaxConns)
	case gtkserver.ModeUDP:
		return a.serveUDP(a.opts.Address)
	}
	return fmt.Errorf("no transport selected")
}

func (a *app) sendInit(w io.Writer) {
	if a.opts.Init == "" {
		return
	}
	greeting := a.opts.Init
	if !a.server.Config().NoNewline {
		greeting += "\n"
	}
	io.WriteString(w, greeting)
}

// serveStream answers each line of r on w until EOF
func (a *app) serveStream(r io.Reader, w io.Writer) error {
	a.out = w
	a.sendInit(w)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	for sc.Scan() {
		if _, err := io.WriteString(w, a.server.Handle(sc.Text())); err != nil {
			return fmt.Errorf("cannot write answer: %w", err)
		}
	}
	return sc.Err()
}

// serveTerminal is the interactive stdin loop with line editing
func (a *app) serveTerminal() error {
	ln := liner.NewLiner()
	ln.SetCtrlCAborts(true)
	a.onShutdown(func() { ln.Close() })

	a.out = os.Stdout
	a.sendInit(os.Stdout)
	for {
		line, err := ln.Prompt("")
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("cannot read request: %w", err)
		}
		if strings.TrimSpace(line) != "" {
			ln.AppendHistory(line)
		}
		fmt.Print(a.server.Handle(line))
	}
}

// serveFIFO alternates between reading one request from the named pipe and
// writing the answer back into it.
func (a *app) serveFIFO(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := unix.Mkfifo(path, 0o600); err != nil {
			return fmt.Errorf("cannot create fifo %s: %w", path, err)
		}
		a.onShutdown(func() { os.Remove(path) })
	}

	a.out = fifoAnswer(path)
	for {
		line, err := readFIFOLine(path)
		if err != nil {
			return err
		}
		if line == "" {
			continue
		}
		if _, err := io.WriteString(a.out, a.server.Handle(line)); err != nil {
			return fmt.Errorf("cannot write answer: %w", err)
		}
	}
}

// fifoAnswer writes each answer into the named pipe with a fresh open
type fifoAnswer string

func (p fifoAnswer) Write(b []byte) (int, error) {
	w, err := os.OpenFile(string(p), os.O_WRONLY, 0)
	if err != nil {
		return 0, fmt.Errorf("cannot open fifo %s: %w", string(p), err)
	}
	defer w.Close()
	return w.Write(b)
}

func readFIFOLine(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("cannot open fifo %s: %w", path, err)
	}
	defer f.Close()
	line, err := bufio.NewReaderSize(f, 64*1024).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("cannot read fifo %s: %w", path, err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// serveTCP serves connections one after another. With max > 0 the server
// stops after that many connections.
func (a *app) serveTCP(addr string, max int) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("cannot listen on %s: %w", addr, err)
	}
	a.onShutdown(func() { l.Close() })

	for served := 0; max == 0 || served < max; served++ {
		conn, err := l.Accept()
		if err != nil {
			return fmt.Errorf("cannot accept on %s: %w", addr, err)
		}
		a.log.DebugCat(gtkserver.CatIO, "connection from %s", conn.RemoteAddr())
		err = a.serveStream(conn, conn)
		conn.Close()
		if err != nil {
			a.log.WarnCat(gtkserver.CatIO, "connection %s: %v", conn.RemoteAddr(), err)
		}
	}
	return nil
}

// serveUDP answers every datagram to its sender
func (a *app) serveUDP(addr string) error {
	pc, err := net.ListenPacket("udp", addr)
	if err != nil {
		return fmt.Errorf("cannot listen on %s: %w", addr, err)
	}
	a.onShutdown(func() { pc.Close() })

	buf := make([]byte, 64*1024)
	for {
		n, from, err := pc.ReadFrom(buf)
		if err != nil {
			return fmt.Errorf("cannot read datagram: %w", err)
		}
		line := strings.TrimRight(string(buf[:n]), "\r\n")
		a.out = nil
		if _, err := pc.WriteTo([]byte(a.server.Handle(line)), from); err != nil {
			a.log.WarnCat(gtkserver.CatIO, "cannot answer %s: %v", from, err)
		}
	}
}
