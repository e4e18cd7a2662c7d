// Package portforward implements the port-forward supervisor (SPEC_FULL.md §4.5): a relay
// child-process, re-exec'd from the orchestrator binary, that copies bytes between a host listener
// and a target container address, plus a Manager that spawns, tracks, and tears down relays.
//
// The relay itself is grounded on the teacher's internal/socketproxy.Proxy: a listener is opened,
// accepted connections are handled independently, and Stop tears the listener down cleanly. Unlike
// the teacher's HTTP reverse proxy, a port forward relays arbitrary TCP bytes or UDP datagrams, so
// the transport is io.Copy pairs instead of httputil.ReverseProxy.
package portforward

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync/atomic"

	"go.uber.org/zap"
)

// Proto is the transport a relay forwards.
type Proto string

const (
	ProtoTCP Proto = "tcp"
	ProtoUDP Proto = "udp"
)

// Spec fully describes one relay: listen on hostIP:hostPort, forward to targetIP:targetPort.
type Spec struct {
	Proto      Proto
	HostIP     string
	HostPort   int
	TargetIP   string
	TargetPort int
}

func (s Spec) hostAddr() string   { return net.JoinHostPort(s.HostIP, portStr(s.HostPort)) }
func (s Spec) targetAddr() string { return net.JoinHostPort(s.TargetIP, portStr(s.TargetPort)) }

func portStr(p int) string { return fmt.Sprintf("%d", p) }

// Relay owns one listening socket and forwards every connection or datagram it accepts to Spec's
// target until Stop is called.
type Relay struct {
	spec   Spec
	logger *zap.Logger

	tcpListener net.Listener
	udpConn     *net.UDPConn
}

func NewRelay(spec Spec, logger *zap.Logger) *Relay {
	return &Relay{spec: spec, logger: logger}
}

// Run opens the listen socket and forwards traffic until ctx is cancelled. It blocks; callers run
// it as the entire body of the relay child process (or a goroutine in tests).
func (r *Relay) Run(ctx context.Context) error {
	switch r.spec.Proto {
	case ProtoUDP:
		return r.runUDP(ctx)
	default:
		return r.runTCP(ctx)
	}
}

func (r *Relay) runTCP(ctx context.Context) error {
	ln, err := net.Listen("tcp", r.spec.hostAddr())
	if err != nil {
		return fmt.Errorf("portforward: listen %s: %w", r.spec.hostAddr(), err)
	}
	r.tcpListener = ln
	r.logger.Info("relay listening", zap.String("proto", "tcp"), zap.String("host", r.spec.hostAddr()), zap.String("target", r.spec.targetAddr()))

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("portforward: accept: %w", err)
			}
		}
		go r.handleTCPConn(conn)
	}
}

func (r *Relay) handleTCPConn(client net.Conn) {
	defer client.Close()

	upstream, err := net.Dial("tcp", r.spec.targetAddr())
	if err != nil {
		r.logger.Warn("relay dial upstream failed", zap.String("target", r.spec.targetAddr()), zap.Error(err))
		return
	}
	defer upstream.Close()

	done := make(chan struct{}, 2)
	go func() { io.Copy(upstream, client); done <- struct{}{} }()
	go func() { io.Copy(client, upstream); done <- struct{}{} }()
	<-done
}

// runUDP relays datagrams over a single shared listen socket and a single upstream socket,
// matching the teacher's preference for one long-lived listener over per-connection sockets.
// Replies from the target go to the client that sent the most recent datagram.
func (r *Relay) runUDP(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", r.spec.hostAddr())
	if err != nil {
		return fmt.Errorf("portforward: resolve %s: %w", r.spec.hostAddr(), err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("portforward: listen %s: %w", r.spec.hostAddr(), err)
	}
	r.udpConn = conn
	r.logger.Info("relay listening", zap.String("proto", "udp"), zap.String("host", r.spec.hostAddr()), zap.String("target", r.spec.targetAddr()))

	targetAddr, err := net.ResolveUDPAddr("udp", r.spec.targetAddr())
	if err != nil {
		conn.Close()
		return fmt.Errorf("portforward: resolve target %s: %w", r.spec.targetAddr(), err)
	}

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buf := make([]byte, 65535)
	upstream, err := net.DialUDP("udp", nil, targetAddr)
	if err != nil {
		return fmt.Errorf("portforward: dial upstream %s: %w", r.spec.targetAddr(), err)
	}
	defer upstream.Close()

	var lastClient atomic.Pointer[net.UDPAddr]
	go func() {
		respBuf := make([]byte, 65535)
		for {
			n, err := upstream.Read(respBuf)
			if err != nil {
				return
			}
			if client := lastClient.Load(); client != nil {
				conn.WriteToUDP(respBuf[:n], client)
			}
		}
	}()

	for {
		n, client, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("portforward: read: %w", err)
			}
		}
		lastClient.Store(client)
		upstream.Write(buf[:n])
	}
}

// Stop closes whichever socket is active.
func (r *Relay) Stop() error {
	if r.tcpListener != nil {
		return r.tcpListener.Close()
	}
	if r.udpConn != nil {
		return r.udpConn.Close()
	}
	return nil
}
